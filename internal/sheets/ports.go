package sheets

import (
	"context"

	"finscope/internal/core"
)

// Ports for outbound statement adapters.
type (
	// StatementWriter appends one transaction to the exported statement and
	// returns an adapter-specific row reference.
	StatementWriter interface {
		Append(ctx context.Context, record core.TransactionRecord) (rowRef string, err error)
	}
)
