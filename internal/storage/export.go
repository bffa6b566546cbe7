package storage

import (
	"context"
	"fmt"
	"time"

	"finscope/internal/core"
)

// Export state tracking for the statement worker. Rows start pending, move to
// exported once appended to the statement, and to error when the append
// failed so operators can spot them.
const (
	exportStatePending  = "pending"
	exportStateExported = "exported"
	exportStateError    = "error"
)

// GetPendingExport returns up to limit transactions that have not been
// exported yet, oldest first.
func (r *SQLiteRepository) GetPendingExport(ctx context.Context, limit int) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, kind, title, amount, description, created_at
		 FROM transactions WHERE export_state = ? ORDER BY created_at ASC, id LIMIT ?`,
		exportStatePending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	records := make([]core.TransactionRecord, 0)
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending exports: %w", err)
	}
	return records, nil
}

// MarkExported records a successful statement append.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_state = ?, exported_at = ? WHERE id = ?`,
		exportStateExported, core.EpochMillis(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return requireAffected(res)
}

// MarkExportError flags a failed statement append for operator attention.
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET export_state = ? WHERE id = ?`,
		exportStateError, id)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return requireAffected(res)
}
