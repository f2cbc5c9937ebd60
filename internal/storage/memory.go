package storage

import (
	"context"
	"fmt"
	"sync"

	"moneytracker/internal/core"
)

// MemoryRepository keeps rows in a map. It mirrors SQLiteRepository for
// tests and the memory backend.
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   map[int64]core.Transaction
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[int64]core.Transaction)}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) Ping(context.Context) error { return nil }

func (m *MemoryRepository) Insert(_ context.Context, tx core.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.ID == 0 {
		m.nextID++
		tx.ID = m.nextID
	}
	if _, exists := m.rows[tx.ID]; exists {
		return 0, fmt.Errorf("create transaction: duplicate id %d", tx.ID)
	}
	if tx.ID > m.nextID {
		m.nextID = tx.ID
	}
	m.rows[tx.ID] = tx
	return tx.ID, nil
}

func (m *MemoryRepository) Update(_ context.Context, tx core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tx.ID]; !ok {
		return fmt.Errorf("update transaction %d: %w", tx.ID, ErrNotFound)
	}
	m.rows[tx.ID] = tx
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	delete(m.rows, id)
	return nil
}

func (m *MemoryRepository) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = make(map[int64]core.Transaction)
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id int64) (core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.rows[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, ErrNotFound)
	}
	return tx, nil
}

func (m *MemoryRepository) List(context.Context) ([]core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Transaction, 0, len(m.rows))
	for _, tx := range m.rows {
		out = append(out, tx)
	}
	core.SortNewestFirst(out)
	return out, nil
}
