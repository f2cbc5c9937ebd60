// Command moneytracker-server exposes the ledger over a JSON HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneytracker/internal/cache"
	"moneytracker/internal/cli"
	"moneytracker/internal/entry"
	apphttp "moneytracker/internal/http"
	"moneytracker/internal/log"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	platform, err := entry.ParsePlatform(cfg.PaymentPlatform)
	if err != nil {
		logger.Error("Invalid payment platform", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	res := cli.InitBackend(startCtx, logger, cfg)

	manager := cache.NewManager(logger)
	provider, err := cli.NewRatesProvider(cfg, logger, manager)
	if err != nil {
		logger.Warn("Rates disabled", log.FieldError, err)
	}
	manager.StartCleanup(5 * time.Minute)

	store := cli.InitLedger(startCtx, logger, cfg, res, provider)
	cancelStart()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:   store,
		Platform: platform,
		Ping:     res.Ping,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := store.Close(); err != nil {
			logger.Error("Closing ledger failed", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Closing backend failed", log.FieldError, err)
		}
		manager.Stop()
	})

	logger.Info("Starting moneytracker server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"platform", platform,
		"default_currency", cfg.DefaultCurrency)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
