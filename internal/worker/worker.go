// Package worker reacts to ledger change events: it debounces bursts of
// mutations, rewrites the on-disk JSON backup, and optionally mirrors the
// transaction collection to a Google spreadsheet.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"inventario/internal/amqp"
	"inventario/internal/backup"
	"inventario/internal/core"
	"inventario/internal/report"
	"inventario/internal/storage"
)

const transactionsKey = "inventory_transactions"

// SheetMirror is the slice of the sheets exporter the worker consumes.
type SheetMirror interface {
	ReplaceAll(ctx context.Context, transactions []core.Transaction) error
}

type BackupWorker struct {
	kv        storage.KV
	backups   *backup.Manager
	mirror    SheetMirror // nil when sheets push is disabled
	backupDir string
	debounce  time.Duration

	dirty chan struct{}
}

func NewBackupWorker(kv storage.KV, backups *backup.Manager, mirror SheetMirror, backupDir string, debounce time.Duration) *BackupWorker {
	return &BackupWorker{
		kv:        kv,
		backups:   backups,
		mirror:    mirror,
		backupDir: backupDir,
		debounce:  debounce,
		dirty:     make(chan struct{}, 1),
	}
}

// HandleEvent marks the collection dirty. It never fails: a slow worker only
// coalesces more events into one flush.
func (w *BackupWorker) HandleEvent(msg *amqp.LedgerEvent) error {
	select {
	case w.dirty <- struct{}{}:
	default:
	}
	return nil
}

// Run flushes after each burst of events, waiting the debounce interval so a
// rapid series of mutations produces a single backup write. Returns when ctx
// is cancelled, flushing once more if work is pending.
func (w *BackupWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Both cases can be ready at once; do not lose pending work to
			// select order.
			select {
			case <-w.dirty:
				w.flush(context.Background())
			default:
			}
			return ctx.Err()
		case <-w.dirty:
		}

		// Debounce: absorb follow-up events before flushing.
		timer := time.NewTimer(w.debounce)
	drain:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				w.flush(context.Background())
				return ctx.Err()
			case <-w.dirty:
			case <-timer.C:
				break drain
			}
		}

		w.flush(ctx)
	}
}

// Flush forces an immediate backup write, used at startup so a worker restart
// cannot miss events published while it was down.
func (w *BackupWorker) Flush(ctx context.Context) {
	w.flush(ctx)
}

func (w *BackupWorker) flush(ctx context.Context) {
	path, err := w.backups.WriteFile(ctx, w.backupDir)
	if err != nil {
		slog.ErrorContext(ctx, "Backup write failed", "error", err)
	} else {
		slog.InfoContext(ctx, "Backup refreshed", "path", path)
	}

	if w.mirror == nil {
		return
	}
	transactions, err := w.loadTransactions(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Transactions load for mirror failed", "error", err)
		return
	}
	if err := w.mirror.ReplaceAll(ctx, report.SortByDateDesc(transactions)); err != nil {
		slog.ErrorContext(ctx, "Spreadsheet mirror failed", "error", err)
	}
}

func (w *BackupWorker) loadTransactions(ctx context.Context) ([]core.Transaction, error) {
	raw, ok, err := w.kv.Get(ctx, transactionsKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var transactions []core.Transaction
	if err := json.Unmarshal(raw, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}
