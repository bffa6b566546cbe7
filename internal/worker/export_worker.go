// Package worker moves committed transactions from the store onto the
// exported statement, driven by change events with a periodic backup scan.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finscope/internal/amqp"
	"finscope/internal/core"
	"finscope/internal/sheets"
)

// ExportStore is the slice of the repository the worker needs: reading
// records and tracking their export state.
type ExportStore interface {
	GetByID(ctx context.Context, id string) (core.TransactionRecord, error)
	GetPendingExport(ctx context.Context, limit int) ([]core.TransactionRecord, error)
	MarkExported(ctx context.Context, id string) error
	MarkExportError(ctx context.Context, id string) error
}

// ExportWorker appends transactions to the statement as change events arrive.
type ExportWorker struct {
	store     ExportStore
	writer    sheets.StatementWriter
	batchSize int
}

func NewExportWorker(store ExportStore, writer sheets.StatementWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleChangeMessage processes a single transaction change event from AMQP.
// The statement is append-only: deletes are acknowledged and skipped, and a
// record that vanished before processing is treated the same way.
func (w *ExportWorker) HandleChangeMessage(ctx context.Context, msg *amqp.TransactionChangeMessage) error {
	if msg.Op == amqp.OpDelete {
		slog.InfoContext(ctx, "Skipping delete event, statement is append-only", "txn_id", msg.ID)
		return nil
	}

	record, err := w.store.GetByID(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Transaction gone before export, skipping", "txn_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	if err := w.exportRecord(ctx, record); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	return nil
}

// ProcessPendingExports exports any transactions the event stream missed.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.store.GetPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending exports: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, record := range pending {
		if err := w.exportRecord(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction", "txn_id", record.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupExportCheck drains a larger pending batch at worker startup to
// recover from missed messages or worker downtime.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	pending, err := w.store.GetPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending exports for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for _, record := range pending {
		if err := w.exportRecord(ctx, record); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"txn_id", record.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportRecord(ctx context.Context, record core.TransactionRecord) error {
	ref, err := w.writer.Append(ctx, record)
	if err != nil {
		if markErr := w.store.MarkExportError(ctx, record.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error", "txn_id", record.ID, "error", markErr)
		}
		return fmt.Errorf("append to statement: %w", err)
	}

	if err := w.store.MarkExported(ctx, record.ID); err != nil {
		// The append worked; only the bookkeeping failed.
		slog.ErrorContext(ctx, "Failed to mark as exported", "txn_id", record.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported transaction",
		"txn_id", record.ID,
		"sheets_ref", ref,
		"amount", record.Amount)

	return nil
}
