package services

import (
	"context"
	"errors"
	"fmt"

	"moneytracker/internal/amqp"
	"moneytracker/internal/core"
	"moneytracker/internal/log"
)

// Repository is the transaction row store the service writes through.
type Repository interface {
	Insert(ctx context.Context, tx core.Transaction) (int64, error)
	Update(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context) error
	Get(ctx context.Context, id int64) (core.Transaction, error)
	List(ctx context.Context) ([]core.Transaction, error)
	Close() error
}

// Publisher announces row changes to the sync worker.
type Publisher interface {
	PublishTransactionChange(ctx context.Context, id int64, op amqp.Op) error
	Close() error
}

// TransactionService writes rows and then publishes a change event for
// each write. Publishing is best effort: the row is the source of truth
// and the worker reconciles anything a lost event missed.
type TransactionService struct {
	storage   Repository
	publisher Publisher
	logger    *log.Logger
}

// NewTransactionService accepts a nil publisher when no broker is configured.
func NewTransactionService(storage Repository, publisher Publisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentStorage),
	}
}

func (s *TransactionService) Insert(ctx context.Context, tx core.Transaction) (int64, error) {
	id, err := s.storage.Insert(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, id, amqp.OpUpsert)
	return id, nil
}

func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) error {
	if err := s.storage.Update(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	s.publish(ctx, tx.ID, amqp.OpUpsert)
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.publish(ctx, id, amqp.OpDelete)
	return nil
}

// Clear removes every row and publishes a delete for each one removed.
func (s *TransactionService) Clear(ctx context.Context) error {
	existing, err := s.storage.List(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	for _, tx := range existing {
		s.publish(ctx, tx.ID, amqp.OpDelete)
	}
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.Get(ctx, id)
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	return s.storage.List(ctx)
}

func (s *TransactionService) publish(ctx context.Context, id int64, op amqp.Op) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change event",
			log.FieldTransactionID, id)
		return
	}
	if err := s.publisher.PublishTransactionChange(ctx, id, op); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change event",
			log.FieldTransactionID, id, "op", op, log.FieldError, err)
	}
}

// Close closes both storage and the publisher.
func (s *TransactionService) Close() error {
	var errs []error
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
