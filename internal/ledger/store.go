package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/kv"
	"moneytracker/internal/log"
	"moneytracker/internal/rates"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrPersistence wraps every durable write or read failure. The
	// in-memory state is not rolled back when it is returned.
	ErrPersistence    = errors.New("persistence failed")
	ErrNotFound       = errors.New("transaction not found")
	ErrNotInitialized = errors.New("ledger store not initialized")
)

// RowStore is the durable table of transactions, keyed by ID.
type RowStore interface {
	Insert(ctx context.Context, tx core.Transaction) (int64, error)
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	List(ctx context.Context) ([]core.Transaction, error)
}

// SnapshotStore holds JSON documents under fixed keys. Get returns
// kv.ErrNotFound for keys never written.
type SnapshotStore interface {
	PutMany(ctx context.Context, entries map[string]any) error
	Get(ctx context.Context, key string, v any) error
}

type Options struct {
	Rows      RowStore
	Snapshots SnapshotStore
	// Rates is optional. When set, Init and RefreshRates fetch from it.
	Rates           rates.Provider
	DefaultCurrency string
	Now             func() time.Time
	Logger          *log.Logger
}

// Store owns the ledger state. Dispatches are serialized; reads never wait
// for storage I/O.
type Store struct {
	rows            RowStore
	snapshots       SnapshotStore
	rates           rates.Provider
	defaultCurrency string
	now             func() time.Time
	logger          *log.Logger

	writeMu sync.Mutex
	writer  *snapshotWriter

	mu    sync.RWMutex
	state State
	ready bool
}

func NewStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Store{
		rows:            opts.Rows,
		snapshots:       opts.Snapshots,
		rates:           opts.Rates,
		defaultCurrency: opts.DefaultCurrency,
		now:             opts.Now,
		logger:          opts.Logger.WithComponent(log.ComponentLedger),
		state:           NewState(opts.DefaultCurrency, opts.Now()),
	}
}

// Init loads the snapshot, preferences, budgets, rows and rates
// concurrently and applies them as a single LoadState. The month cursor
// always starts on the current month. A rates failure is only logged.
func (s *Store) Init(ctx context.Context) error {
	var (
		snapshot        State
		haveSnapshot    bool
		language        string
		budgets         []Budget
		categoryBudgets map[string]decimal.Decimal
		rows            []core.Transaction
		table           core.RateTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		haveSnapshot, err = s.load(gctx, kv.KeyAppState, &snapshot)
		return err
	})
	g.Go(func() error {
		_, err := s.load(gctx, kv.KeyLanguage, &language)
		return err
	})
	g.Go(func() error {
		_, err := s.load(gctx, kv.KeyBudgets, &budgets)
		return err
	})
	g.Go(func() error {
		_, err := s.load(gctx, kv.KeyCategoryBudgets, &categoryBudgets)
		return err
	})
	g.Go(func() error {
		list, err := s.rows.List(gctx)
		if err != nil {
			return fmt.Errorf("%w: load transactions: %w", ErrPersistence, err)
		}
		rows = list
		return nil
	})
	if s.rates != nil {
		g.Go(func() error {
			t, err := s.rates.Rates(gctx)
			if err != nil {
				s.logger.WarnContext(gctx, "Starting without fresh exchange rates", log.FieldError, err)
				return nil
			}
			table = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Op(ctx, log.OpLoad, err)
		return err
	}

	now := s.now()
	fresh := NewState(s.defaultCurrency, now)
	restored := fresh
	if haveSnapshot {
		restored = snapshot
	}
	restored.CurrentMonth = core.StartOfMonth(now)
	restored.Transactions = rows
	if language != "" {
		restored.Language = language
	}
	if budgets != nil {
		restored.Budgets = budgets
	}
	if categoryBudgets != nil {
		restored.CategoryBudgets = categoryBudgets
	}
	if table != nil {
		restored.Rates = table
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.state = Reduce(fresh, LoadState{State: restored})
	s.ready = true
	st := s.state
	s.mu.Unlock()

	if s.writer == nil {
		s.writer = newSnapshotWriter(s.snapshots, s.logger)
	}
	s.writer.submit(st)
	s.logger.InfoContext(ctx, "Ledger loaded",
		"transactions", len(st.Transactions),
		"budgets", len(st.Budgets),
		log.FieldCurrency, st.DefaultCurrency,
		"snapshot", haveSnapshot)
	return nil
}

// load reads key into v and reports whether it existed.
func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	err := s.snapshots.Get(ctx, key, v)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %w", ErrPersistence, key, err)
	}
	return true, nil
}

// Close writes the last pending snapshot and stops the writer. The row
// and snapshot stores are owned by the caller and stay open.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.close()
	s.writer = nil
	if err != nil {
		return fmt.Errorf("%w: final snapshot: %w", ErrPersistence, err)
	}
	return nil
}

// Dispatch applies a, mirrors transaction changes to the row store and
// queues a snapshot of the new state. On ErrPersistence the new state is
// kept and returned anyway.
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	_, next, err := s.dispatch(ctx, a)
	return next, err
}

// dispatch is Dispatch that also returns the action as prepared.
func (s *Store) dispatch(ctx context.Context, a Action) (Action, State, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if !s.ready {
		s.mu.Unlock()
		return nil, State{}, ErrNotInitialized
	}
	prev := s.state
	a = s.prepare(prev, a)
	next := Reduce(prev, a)
	s.state = next
	s.mu.Unlock()

	err := s.mirror(ctx, prev, a)
	s.writer.submit(next)

	if err != nil {
		s.logger.ErrorContext(ctx, "Row store write failed",
			"action", a.Name(), log.FieldError, err)
		return a, next, fmt.Errorf("%w: %s: %w", ErrPersistence, a.Name(), err)
	}
	s.logger.DebugContext(ctx, "Action applied", "action", a.Name(), "transactions", len(next.Transactions))
	return a, next, nil
}

// prepare fills in what Reduce must not invent: IDs and timestamps.
func (s *Store) prepare(prev State, a Action) Action {
	switch a := a.(type) {
	case AddTransaction:
		tx := a.Transaction
		now := s.now()
		if tx.ID == 0 {
			tx.ID = now.UnixMilli()
		}
		for indexOf(prev.Transactions, tx.ID) >= 0 {
			tx.ID++
		}
		if tx.Currency == "" {
			tx.Currency = prev.DefaultCurrency
		}
		if tx.LastModified.IsZero() {
			tx.LastModified = now
		}
		return AddTransaction{Transaction: tx}
	case EditTransaction:
		if a.Transaction.LastModified.IsZero() {
			a.Transaction.LastModified = s.now()
		}
		if a.Transaction.Currency == "" {
			a.Transaction.Currency = prev.DefaultCurrency
		}
		return a
	case AddBudget:
		if a.Budget.ID == "" {
			a.Budget.ID = uuid.NewString()
		}
		a.Budget.Limit = core.Round(a.Budget.Limit)
		return a
	default:
		return a
	}
}

// mirror writes transaction changes to the row store. Actions that did not
// change a stored transaction write nothing.
func (s *Store) mirror(ctx context.Context, prev State, a Action) error {
	switch a := a.(type) {
	case AddTransaction:
		_, err := s.rows.Insert(ctx, a.Transaction)
		return err
	case EditTransaction:
		if _, ok := prev.Find(a.ID); !ok {
			return nil
		}
		tx := a.Transaction
		tx.ID = a.ID
		return s.rows.Update(ctx, tx)
	case DeleteTransaction:
		if _, ok := prev.Find(a.ID); !ok {
			return nil
		}
		return s.rows.Delete(ctx, a.ID)
	case ClearTransactions:
		return s.rows.Clear(ctx)
	default:
		return nil
	}
}

// Save adds tx, or replaces the stored transaction with the same ID. It
// has the shape of the entry machine's save callback.
func (s *Store) Save(ctx context.Context, tx core.Transaction) error {
	if tx.Currency == "" {
		tx.Currency = s.State().DefaultCurrency
	}
	if err := tx.Validate(); err != nil {
		return err
	}
	var a Action = AddTransaction{Transaction: tx}
	if tx.ID != 0 {
		if _, ok := s.State().Find(tx.ID); ok {
			a = EditTransaction{ID: tx.ID, Transaction: tx}
		}
	}
	_, err := s.Dispatch(ctx, a)
	return err
}

// Add stores tx as a new transaction and returns it as stored. An ID that
// is already taken is moved forward to the next free one.
func (s *Store) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.Currency == "" {
		tx.Currency = s.State().DefaultCurrency
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	applied, _, err := s.dispatch(ctx, AddTransaction{Transaction: tx})
	if add, ok := applied.(AddTransaction); ok {
		return add.Transaction, err
	}
	return core.Transaction{}, err
}

// Delete removes the transaction with id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, ok := s.State().Find(id); !ok {
		return fmt.Errorf("delete %d: %w", id, ErrNotFound)
	}
	_, err := s.Dispatch(ctx, DeleteTransaction{ID: id})
	return err
}

// Get returns the transaction with id.
func (s *Store) Get(id int64) (core.Transaction, error) {
	tx, ok := s.State().Find(id)
	if !ok {
		return core.Transaction{}, fmt.Errorf("get %d: %w", id, ErrNotFound)
	}
	return tx, nil
}

// State returns the current state. Its slices and maps are shared and
// must not be modified.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Transactions lists the transactions matching f, newest first.
func (s *Store) Transactions(f Filter) []core.Transaction {
	return s.State().Select(f)
}

// SpentByCategory sums the current month's expenses per category.
func (s *Store) SpentByCategory() []core.CategoryAmount {
	return s.State().SpentByCategory()
}

// RefreshRates fetches a new rate table and applies it. A caching provider
// is invalidated first so the table comes from upstream.
func (s *Store) RefreshRates(ctx context.Context) error {
	if s.rates == nil {
		return rates.ErrUnavailable
	}
	if c, ok := s.rates.(interface{ Invalidate() }); ok {
		c.Invalidate()
	}
	table, err := s.rates.Rates(ctx)
	if err != nil {
		return err
	}
	_, err = s.Dispatch(ctx, SetRates{Rates: table})
	return err
}

// Flush waits for queued snapshots to be written.
func (s *Store) Flush() error {
	s.writeMu.Lock()
	w := s.writer
	s.writeMu.Unlock()
	if w == nil {
		return nil
	}
	if err := w.flush(); err != nil {
		return fmt.Errorf("%w: snapshot: %w", ErrPersistence, err)
	}
	return nil
}
