package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"moneytracker/internal/cache"
	"moneytracker/internal/core"
	"moneytracker/internal/kv"
	"moneytracker/internal/rates"
	"moneytracker/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRows struct {
	*storage.MemoryRepository
	fail bool
}

func (f *failingRows) Insert(ctx context.Context, tx core.Transaction) (int64, error) {
	if f.fail {
		return 0, errors.New("disk I/O error")
	}
	return f.MemoryRepository.Insert(ctx, tx)
}

// memSnapshots is a SnapshotStore that records every write.
type memSnapshots struct {
	mu     sync.Mutex
	data   map[string]any
	writes int
	gate   chan struct{}
}

func (m *memSnapshots) PutMany(_ context.Context, entries map[string]any) error {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]any{}
	}
	for k, v := range entries {
		m.data[k] = v
	}
	m.writes++
	return nil
}

func (m *memSnapshots) Get(context.Context, string, any) error {
	return kv.ErrNotFound
}

func newKV(t *testing.T) *kv.Store {
	t.Helper()
	store, err := kv.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newStore(t *testing.T, rows RowStore, snaps SnapshotStore) *Store {
	t.Helper()
	s := NewStore(Options{
		Rows:            rows,
		Snapshots:       snaps,
		Rates:           rates.NewStatic(core.RateTable{"USD": dec("1"), "EUR": dec("0.5")}),
		DefaultCurrency: "USD",
		Now:             func() time.Time { return may },
	})
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_DispatchBeforeInit(t *testing.T) {
	s := NewStore(Options{Rows: storage.NewMemoryRepository(), Snapshots: &memSnapshots{}})
	_, err := s.Dispatch(context.Background(), NextMonth{})
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestStore_SaveMirrorsRows(t *testing.T) {
	ctx := context.Background()
	rows := storage.NewMemoryRepository()
	s := newStore(t, rows, newKV(t))

	tx := txn(0, core.Expense, "25", "", "Travel", may)
	require.NoError(t, s.Save(ctx, tx))

	list := s.Transactions(Filter{})
	require.Len(t, list, 1)
	saved := list[0]
	assert.Equal(t, may.UnixMilli(), saved.ID)
	assert.Equal(t, "USD", saved.Currency)

	stored, err := rows.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(dec("25")))

	saved.Amount = dec("30")
	require.NoError(t, s.Save(ctx, saved))
	assert.Len(t, s.Transactions(Filter{}), 1, "same id edits")
	stored, _ = rows.Get(ctx, saved.ID)
	assert.True(t, stored.Amount.Equal(dec("30")))
	assert.True(t, s.State().Summary.Expense.Equal(dec("30")))

	require.NoError(t, s.Delete(ctx, saved.ID))
	_, err = rows.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, saved.ID), ErrNotFound)
}

func TestStore_GeneratedIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryRepository(), &memSnapshots{})
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, txn(0, core.Income, "1", "USD", "Gift", may)))
	}
	ids := map[int64]bool{}
	for _, tx := range s.Transactions(Filter{}) {
		ids[tx.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestStore_AddMovesTakenIDs(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, storage.NewMemoryRepository(), &memSnapshots{})

	first, err := s.Add(ctx, txn(42, core.Income, "1", "USD", "Gift", may))
	require.NoError(t, err)
	second, err := s.Add(ctx, txn(42, core.Income, "2", "USD", "Gift", may))
	require.NoError(t, err)

	assert.Equal(t, int64(42), first.ID)
	assert.Equal(t, int64(43), second.ID)
	assert.Len(t, s.Transactions(Filter{}), 2)

	_, err = s.Add(ctx, txn(0, core.Income, "0", "USD", "Gift", may))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestStore_SaveRejectsInvalidRecord(t *testing.T) {
	rows := storage.NewMemoryRepository()
	s := newStore(t, rows, &memSnapshots{})
	tx := txn(0, core.Transfer, "10", "USD", "", may)
	tx.ToAccount = tx.Account

	assert.ErrorIs(t, s.Save(context.Background(), tx), core.ErrSameAccount)
	assert.Empty(t, s.Transactions(Filter{}))
	list, _ := rows.List(context.Background())
	assert.Empty(t, list)
}

func TestStore_RowFailureKeepsMemory(t *testing.T) {
	rows := &failingRows{MemoryRepository: storage.NewMemoryRepository(), fail: true}
	s := newStore(t, rows, &memSnapshots{})

	err := s.Save(context.Background(), txn(7, core.Expense, "9", "USD", "Travel", may))
	assert.ErrorIs(t, err, ErrPersistence)
	_, ok := s.State().Find(7)
	assert.True(t, ok, "memory is not rolled back")
}

func TestStore_SnapshotsRoundTripThroughKV(t *testing.T) {
	ctx := context.Background()
	rows := storage.NewMemoryRepository()
	store := newKV(t)

	s := newStore(t, rows, store)
	require.NoError(t, s.Save(ctx, txn(1, core.Expense, "60", "USD", "Travel", may)))
	_, err := s.Dispatch(ctx, SetLanguage{Language: "hi"})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, AddBudget{Budget: Budget{Name: "Trips", Category: "Travel", Limit: dec("100")}})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, UpdateCategoryBudget{Category: "Travel", Limit: dec("80")})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, SetTheme{Theme: ThemeDark})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var language string
	require.NoError(t, store.Get(ctx, kv.KeyLanguage, &language))
	assert.Equal(t, "hi", language)

	reopened := newStore(t, rows, store)
	st := reopened.State()
	assert.Equal(t, "hi", st.Language)
	assert.Equal(t, ThemeDark, st.Theme)
	require.Len(t, st.Budgets, 1)
	assert.NotEmpty(t, st.Budgets[0].ID)
	assert.True(t, st.Budgets[0].Spent.Equal(dec("60")))
	assert.True(t, st.CategoryBudgets["Travel"].Equal(dec("80")))
	require.Len(t, st.Transactions, 1)
	assert.True(t, st.Summary.Expense.Equal(dec("60")))
}

func TestStore_InitStartsOnCurrentMonth(t *testing.T) {
	ctx := context.Background()
	store := newKV(t)
	rows := storage.NewMemoryRepository()

	s := newStore(t, rows, store)
	_, err := s.Dispatch(ctx, PreviousMonth{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := newStore(t, rows, store)
	assert.Equal(t, core.StartOfMonth(may), reopened.State().CurrentMonth)
}

func TestStore_RowsWinOverSnapshotTransactions(t *testing.T) {
	ctx := context.Background()
	store := newKV(t)
	rows := storage.NewMemoryRepository()

	s := newStore(t, rows, store)
	require.NoError(t, s.Save(ctx, txn(1, core.Income, "5", "USD", "Gift", may)))
	require.NoError(t, s.Close())
	require.NoError(t, rows.Clear(ctx))

	reopened := newStore(t, rows, store)
	assert.Empty(t, reopened.State().Transactions)
}

func TestStore_LatestSnapshotWins(t *testing.T) {
	snaps := &memSnapshots{gate: make(chan struct{})}
	s := NewStore(Options{Rows: storage.NewMemoryRepository(), Snapshots: snaps, Now: func() time.Time { return may }})
	require.NoError(t, s.Init(context.Background()))

	for _, lang := range []string{"a", "b", "c", "d"} {
		_, err := s.Dispatch(context.Background(), SetLanguage{Language: lang})
		require.NoError(t, err)
	}
	close(snaps.gate)
	require.NoError(t, s.Flush())
	require.NoError(t, s.Close())

	snaps.mu.Lock()
	defer snaps.mu.Unlock()
	assert.Equal(t, "d", snaps.data[kv.KeyLanguage])
	assert.Less(t, snaps.writes, 5, "superseded snapshots are skipped")
}

func TestStore_RatesUnavailableAtStartup(t *testing.T) {
	s := NewStore(Options{
		Rows:      storage.NewMemoryRepository(),
		Snapshots: &memSnapshots{},
		Rates:     rates.NewStatic(nil),
		Now:       func() time.Time { return may },
	})
	require.NoError(t, s.Init(context.Background()))
	defer s.Close()

	assert.Nil(t, s.State().Rates)
	assert.ErrorIs(t, s.RefreshRates(context.Background()), rates.ErrUnavailable)
}

func TestStore_RefreshRates(t *testing.T) {
	s := newStore(t, storage.NewMemoryRepository(), &memSnapshots{})
	require.NoError(t, s.Save(context.Background(), txn(1, core.Expense, "10", "EUR", "Travel", may)))
	assert.True(t, s.State().Summary.Expense.Equal(dec("20")))

	spent := s.SpentByCategory()
	require.Len(t, spent, 1)
	assert.Equal(t, "Travel", spent[0].Name)
	assert.True(t, spent[0].Amount.Equal(decimal.NewFromInt(20)))

	require.NoError(t, s.RefreshRates(context.Background()))
	assert.True(t, s.State().Summary.Expense.Equal(dec("20")))
}

// upstreamRates returns EUR at 0.5 on the first call and 0.25 afterwards.
type upstreamRates struct {
	calls atomic.Int32
}

func (u *upstreamRates) Rates(context.Context) (core.RateTable, error) {
	eur := "0.25"
	if u.calls.Add(1) == 1 {
		eur = "0.5"
	}
	return core.RateTable{"USD": dec("1"), "EUR": dec(eur)}, nil
}

func TestStore_RefreshRatesBypassesCache(t *testing.T) {
	ctx := context.Background()
	upstream := &upstreamRates{}
	s := NewStore(Options{
		Rows:            storage.NewMemoryRepository(),
		Snapshots:       &memSnapshots{},
		Rates:           rates.NewCached(upstream, cache.NewLRUCache[core.RateTable](1, time.Hour)),
		DefaultCurrency: "USD",
		Now:             func() time.Time { return may },
	})
	require.NoError(t, s.Init(ctx))
	defer s.Close()
	require.NoError(t, s.Save(ctx, txn(1, core.Expense, "10", "EUR", "Travel", may)))
	assert.True(t, s.State().Summary.Expense.Equal(dec("20")))

	require.NoError(t, s.RefreshRates(ctx))
	require.NoError(t, s.RefreshRates(ctx))
	assert.Equal(t, int32(3), upstream.calls.Load(), "startup plus one per refresh")
	assert.True(t, s.State().Rates["EUR"].Equal(dec("0.25")))
	assert.True(t, s.State().Summary.Expense.Equal(dec("40")))
}

func TestStore_ClearRemovesRows(t *testing.T) {
	ctx := context.Background()
	rows := storage.NewMemoryRepository()
	s := newStore(t, rows, &memSnapshots{})
	require.NoError(t, s.Save(ctx, txn(1, core.Income, "5", "USD", "Gift", may)))

	_, err := s.Dispatch(ctx, ClearTransactions{})
	require.NoError(t, err)
	list, _ := rows.List(ctx)
	assert.Empty(t, list)
	assert.True(t, s.State().Summary.Total.IsZero())
}
