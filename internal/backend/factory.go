package backend

import (
	"context"
	"errors"
	"fmt"

	"moneytracker/internal/amqp"
	"moneytracker/internal/kv"
	"moneytracker/internal/log"
	"moneytracker/internal/services"
	"moneytracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStorage),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	snapshots, err := kv.Open(config.BadgerDir, f.logger)
	if err != nil {
		sqliteRepo.Close()
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	service := services.NewTransactionService(sqliteRepo, f.publisher(ctx, config), f.logger)

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"badger_dir", config.BadgerDir,
		"amqp_enabled", config.AMQPURL != "")

	return &BackendResult{
		Rows:      service,
		Snapshots: snapshots,
		Ping:      sqliteRepo.Ping,
		Cleanup:   closeAll(service.Close, snapshots.Close),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	snapshots, err := kv.OpenInMemory(f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory snapshot store: %w", err)
	}

	repo := storage.NewMemoryRepository()
	service := services.NewTransactionService(repo, f.publisher(ctx, config), f.logger)

	f.logger.InfoContext(ctx, "Initialized memory backend")

	return &BackendResult{
		Rows:      service,
		Snapshots: snapshots,
		Ping:      repo.Ping,
		Cleanup:   closeAll(service.Close, snapshots.Close),
	}, nil
}

// publisher connects to the broker when configured. A failed connection
// is logged and the backend runs without change events.
func (f *DefaultFactory) publisher(ctx context.Context, config Config) services.Publisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func closeAll(fns ...CleanupFunc) CleanupFunc {
	return func() error {
		var errs []error
		for _, fn := range fns {
			if err := fn(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}
