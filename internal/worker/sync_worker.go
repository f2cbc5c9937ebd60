package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneytracker/internal/amqp"
	"moneytracker/internal/core"
	"moneytracker/internal/log"
	"moneytracker/internal/sheets"
	"moneytracker/internal/storage"
)

// RowReader is the read side of the transaction repository.
type RowReader interface {
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context) ([]core.Transaction, error)
}

// SyncWorker mirrors stored transactions into a spreadsheet
type SyncWorker struct {
	rows     RowReader
	exporter sheets.Exporter
	logger   *log.Logger
}

func NewSyncWorker(rows RowReader, exporter sheets.Exporter, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		rows:     rows,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent applies one change event. An upsert for a row that no
// longer exists is treated as a delete.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	w.logger.InfoContext(ctx, "Processing transaction event",
		log.FieldTransactionID, event.ID,
		"op", event.Op,
		log.FieldMessageID, event.MessageID)

	switch event.Op {
	case amqp.OpUpsert:
		tx, err := w.rows.Get(ctx, event.ID)
		if errors.Is(err, storage.ErrNotFound) {
			w.logger.WarnContext(ctx, "Transaction gone before sync, deleting row",
				log.FieldTransactionID, event.ID)
			return w.delete(ctx, event.ID)
		}
		if err != nil {
			return fmt.Errorf("get transaction from storage: %w", err)
		}
		if err := w.exporter.Upsert(ctx, tx); err != nil {
			return fmt.Errorf("upsert transaction %d to sheets: %w", event.ID, err)
		}
		w.logger.InfoContext(ctx, "Successfully synced transaction",
			log.NewFields().WithTransaction(tx.ID, tx.Type.String(), tx.Amount, tx.Currency).ToSlice()...)
		return nil
	case amqp.OpDelete:
		return w.delete(ctx, event.ID)
	default:
		return fmt.Errorf("unknown op %q", event.Op)
	}
}

func (w *SyncWorker) delete(ctx context.Context, id int64) error {
	if err := w.exporter.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction %d from sheets: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Successfully deleted transaction row", log.FieldTransactionID, id)
	return nil
}

// ReconcileResult counts the work done by one Reconcile pass.
type ReconcileResult struct {
	Upserted int
	Deleted  int
	Failed   int
}

// Reconcile brings the sheet in line with storage. Rows missing from the
// sheet are written and sheet rows with no stored transaction are removed.
// Existing rows are left alone; events keep them current. It recovers
// from lost messages and worker downtime.
func (w *SyncWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	start := time.Now()

	stored, err := w.rows.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list stored transactions: %w", err)
	}
	ids, err := w.exporter.ListIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list sheet ids: %w", err)
	}

	inSheet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		inSheet[id] = true
	}
	keep := make(map[int64]bool, len(stored))
	for _, tx := range stored {
		keep[tx.ID] = true
		if inSheet[tx.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.exporter.Upsert(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to sync transaction during reconcile",
				log.FieldTransactionID, tx.ID, log.FieldError, err)
			res.Failed++
			continue
		}
		res.Upserted++
	}
	for _, id := range ids {
		if keep[id] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := w.exporter.Delete(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to delete stale row during reconcile",
				log.FieldTransactionID, id, log.FieldError, err)
			res.Failed++
			continue
		}
		res.Deleted++
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		"stored", len(stored),
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"errors", res.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
	return res, nil
}
