package worker

import (
	"context"
	"errors"
	"fmt"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	"fintrack/internal/store"
)

// Source is the part of the record store the worker reads from.
type Source interface {
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	store.SyncTracker
}

// ExportWorker copies transactions from the record store to the spreadsheet.
type ExportWorker struct {
	source    Source
	exporter  sheets.TransactionExporter
	remover   sheets.TransactionRemover
	batchSize int
	logger    *log.Logger
}

// NewExportWorker creates a worker. When the exporter also implements
// sheets.TransactionRemover, delete events clear the exported row.
func NewExportWorker(source Source, exporter sheets.TransactionExporter, batchSize int, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	w := &ExportWorker{
		source:    source,
		exporter:  exporter,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
	if r, ok := exporter.(sheets.TransactionRemover); ok {
		w.remover = r
	}
	return w
}

// HandleEvent processes one transaction event from AMQP. A returned error
// makes the consumer requeue the message.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldTxID, ev.ID,
		log.FieldEventKind, ev.Kind,
		"version", ev.Version)

	switch ev.Kind {
	case amqp.KindUpserted:
		return w.exportOne(ctx, ev.UserID, ev.ID)
	case amqp.KindDeleted:
		return w.remove(ctx, ev.ID)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

func (w *ExportWorker) remove(ctx context.Context, id string) error {
	if w.remover == nil {
		w.logger.WarnContext(ctx, "Exporter cannot delete rows, skipping", log.FieldTxID, id)
		return nil
	}
	if err := w.remover.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove exported row: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed exported transaction", log.FieldTxID, id)
	return nil
}

// exportOne loads the current state of a transaction and exports it. The
// loaded version is marked synced, so a change made meanwhile stays pending.
func (w *ExportWorker) exportOne(ctx context.Context, userID, id string) error {
	tx, err := w.source.GetTransaction(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction no longer exists, skipping export", log.FieldTxID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.exporter.Export(ctx, tx)
	if err != nil {
		if markErr := w.source.MarkSyncError(ctx, id); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldTxID, id, log.FieldError, markErr)
		}
		return fmt.Errorf("export transaction: %w", err)
	}

	if err := w.source.MarkSynced(ctx, id, tx.Version); err != nil {
		// The row is written; the next sweep will rewrite it.
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldTxID, id, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Exported transaction",
		log.FieldTxID, id,
		"version", tx.Version,
		"row_ref", ref)
	return nil
}

// SweepResult counts the outcome of one pending sweep.
type SweepResult struct {
	Total  int
	Synced int
	Errors int
}

// ProcessPending exports up to one batch of transactions that are not yet
// synced. It is the backstop for lost or failed AMQP messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) (SweepResult, error) {
	return w.sweep(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep to catch up after worker downtime.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) (SweepResult, error) {
	res, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return res, err
	}
	if res.Total == 0 {
		w.logger.InfoContext(ctx, "No pending transactions found on startup")
	} else {
		w.logger.InfoContext(ctx, "Startup sync completed",
			"total", res.Total,
			"synced", res.Synced,
			"errors", res.Errors)
	}
	return res, nil
}

func (w *ExportWorker) sweep(ctx context.Context, limit int) (SweepResult, error) {
	pending, err := w.source.PendingSync(ctx, limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("get pending transactions: %w", err)
	}

	res := SweepResult{Total: len(pending)}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.exportOne(ctx, p.UserID, p.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to export pending transaction",
				log.FieldTxID, p.ID,
				log.FieldError, err)
			res.Errors++
			continue
		}
		res.Synced++
	}

	if res.Total > 0 {
		w.logger.InfoContext(ctx, "Processed pending transactions",
			"total", res.Total,
			"synced", res.Synced,
			"errors", res.Errors)
	}
	return res, nil
}

// SweepJob adapts ProcessPending to the scheduler.
func (w *ExportWorker) SweepJob() Job {
	return JobFunc{JobName: "export-pending", Fn: func(ctx context.Context) error {
		_, err := w.ProcessPending(ctx)
		return err
	}}
}
