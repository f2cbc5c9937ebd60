// Command moneytracker-worker mirrors the transaction table into a
// spreadsheet. It applies change events from the message broker and
// reconciles the whole sheet on a timer to pick up anything missed.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"moneytracker/internal/amqp"
	"moneytracker/internal/cli"
	"moneytracker/internal/config"
	"moneytracker/internal/log"
	"moneytracker/internal/services"
	"moneytracker/internal/sheets"
	"moneytracker/internal/sheets/google"
	"moneytracker/internal/sheets/memory"
	"moneytracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(log.ComponentWorker)
	logger.Info("Starting moneytracker-worker")

	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The worker reads rows from SQLite", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	rows := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer rows.Close()

	exporter := newExporter(cfg, logger)
	syncWorker := worker.NewSyncWorker(rows, exporter, logger)
	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{Interval: cfg.SyncInterval}, logger)

	var broker *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Warn("AMQP_URL not set, relying on periodic reconciliation only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Error("Stopping sync processor failed", log.FieldError, err)
		}
		if broker != nil {
			if err := broker.Close(); err != nil {
				logger.Error("Closing AMQP client failed", log.FieldError, err)
			}
		}
	})

	if result, err := syncWorker.Reconcile(ctx); err != nil {
		logger.Error("Startup reconciliation failed", log.FieldError, err)
	} else {
		logger.Info("Startup reconciliation complete", "upserted", result.Upserted, "deleted", result.Deleted)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	if broker != nil {
		go func() {
			err := broker.Consume(ctx, syncWorker.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption stopped", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}

// newExporter returns the Google Sheets mirror when configured and an
// in-process one otherwise, so the worker can run without credentials.
func newExporter(cfg *config.Config, logger *log.Logger) sheets.Exporter {
	if !cfg.SheetsEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring into memory")
		return memory.New()
	}
	client, err := google.New(context.Background(), google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}
