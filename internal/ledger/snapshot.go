package ledger

import (
	"context"
	"sync"

	"moneytracker/internal/kv"
	"moneytracker/internal/log"
)

// snapshotWriter persists state snapshots on a single goroutine. Only the
// latest submitted snapshot is kept; a write already in progress finishes
// and is then overwritten by the next one.
type snapshotWriter struct {
	store  SnapshotStore
	logger *log.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	latest    *State
	submitted uint64
	written   uint64
	lastErr   error
	closed    bool

	wake chan struct{}
	done chan struct{}
}

func newSnapshotWriter(store SnapshotStore, logger *log.Logger) *snapshotWriter {
	w := &snapshotWriter{
		store:  store,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *snapshotWriter) submit(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.latest = &s
	w.submitted++
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) run() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
}

func (w *snapshotWriter) drain() {
	for {
		w.mu.Lock()
		s, seq := w.latest, w.submitted
		w.latest = nil
		w.mu.Unlock()
		if s == nil {
			return
		}

		err := w.write(*s)

		w.mu.Lock()
		w.written = seq
		if err != nil {
			w.lastErr = err
		}
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}

func (w *snapshotWriter) write(s State) error {
	ctx := context.Background()
	err := w.store.PutMany(ctx, map[string]any{
		kv.KeyAppState:        s,
		kv.KeyLanguage:        s.Language,
		kv.KeyBudgets:         s.Budgets,
		kv.KeyCategoryBudgets: s.CategoryBudgets,
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "Snapshot write failed",
			log.FieldOperation, log.OpSnapshot, log.FieldError, err)
		return err
	}
	w.logger.DebugContext(ctx, "Snapshot written", "transactions", len(s.Transactions))
	return nil
}

// flush blocks until every submitted snapshot has been written and returns
// the last write error seen since the previous flush.
func (w *snapshotWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	target := w.submitted
	for w.written < target {
		w.cond.Wait()
	}
	err := w.lastErr
	w.lastErr = nil
	return err
}

// close writes any pending snapshot and stops the goroutine.
func (w *snapshotWriter) close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.wake)
	<-w.done
	w.drain()

	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.lastErr
	w.lastErr = nil
	return err
}
