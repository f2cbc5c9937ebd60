// Package kv stores JSON documents under fixed keys in Badger.
//
// The ledger keeps its whole-state snapshot and a few preference and budget
// sub-structures here, one key each.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"moneytracker/internal/log"

	"github.com/dgraph-io/badger/v3"
)

// Keys used by the ledger.
const (
	KeyAppState        = "APP_STATE"
	KeyLanguage        = "APP_LANGUAGE"
	KeyBudgets         = "APP_BUDGETS"
	KeyCategoryBudgets = "CATEGORY_BUDGETS"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

type Store struct {
	db     *badger.DB
	logger *log.Logger
}

// Open opens (creating if needed) a Badger store in dir.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create kv directory: %w", err)
	}
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(logger *log.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Discard()
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, logger: logger.WithComponent(log.ComponentKV)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put JSON-encodes v under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.DebugContext(ctx, "Value stored", log.FieldKey, key, "bytes", len(data))
	return nil
}

// PutMany writes all entries in a single transaction.
func (s *Store) PutMany(ctx context.Context, entries map[string]any) error {
	encoded := make(map[string][]byte, len(entries))
	for key, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		encoded[key] = data
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for key, data := range encoded {
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write %d keys: %w", len(entries), err)
	}
	s.logger.DebugContext(ctx, "Values stored", "keys", len(entries))
	return nil
}

// Get decodes the value under key into v.
func (s *Store) Get(_ context.Context, key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
