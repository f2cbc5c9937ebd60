// Package cli provides common CLI initialization utilities shared by
// cmd/moneytracker, cmd/moneytracker-server and cmd/moneytracker-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moneytracker/internal/backend"
	"moneytracker/internal/cache"
	"moneytracker/internal/config"
	"moneytracker/internal/core"
	"moneytracker/internal/ledger"
	"moneytracker/internal/log"
	"moneytracker/internal/rates"
	"moneytracker/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger builds the application logger from config and installs it
// as the slog default.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	if format != "" {
		cfg.Format = format
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// InitBackend opens the row and snapshot stores named by cfg.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// NewRatesProvider returns the configured rates source, or nil when
// neither a static table nor a URL is set. Remote tables are cached for
// the configured TTL and the cache is registered with manager.
func NewRatesProvider(cfg *config.Config, logger *log.Logger, manager *cache.Manager) (rates.Provider, error) {
	switch {
	case cfg.Rates != "":
		table, err := rates.ParseTable(cfg.Rates)
		if err != nil {
			return nil, fmt.Errorf("parse RATES: %w", err)
		}
		return rates.NewStatic(table), nil
	case cfg.RatesURL != "":
		lru := cache.NewLRUCache[core.RateTable](1, cfg.RatesCacheTTL)
		if manager != nil {
			manager.Register(lru)
		}
		return rates.NewCached(rates.NewHTTPProvider(cfg.RatesURL, nil, logger), lru), nil
	default:
		return nil, nil
	}
}

// InitLedger builds and initializes the ledger store on top of res.
// Returns the store or exits the process on failure.
func InitLedger(ctx context.Context, logger *log.Logger, cfg *config.Config, res *backend.BackendResult, provider rates.Provider) *ledger.Store {
	store := ledger.NewStore(ledger.Options{
		Rows:            res.Rows,
		Snapshots:       res.Snapshots,
		Rates:           provider,
		DefaultCurrency: cfg.DefaultCurrency,
		Logger:          logger,
	})
	if err := store.Init(ctx); err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}
	return store
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
