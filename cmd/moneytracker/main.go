// Command moneytracker records and reviews transactions from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"moneytracker/internal/cache"
	"moneytracker/internal/cli"
	"moneytracker/internal/config"
	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"
	"moneytracker/internal/log"

	"github.com/alecthomas/kong"
)

// app is bound into every command's Run method.
type app struct {
	ctx      context.Context
	ledger   *ledger.Store
	platform entry.Platform
	out      io.Writer
	errOut   io.Writer
	logger   *log.Logger
}

type commands struct {
	Platform string `help:"Payment app platform (android or ios). Defaults to PAYMENT_PLATFORM."`

	Add     addCmd     `cmd:"" help:"Record a new transaction."`
	Edit    editCmd    `cmd:"" help:"Change a saved transaction."`
	Delete  deleteCmd  `cmd:"" help:"Delete a saved transaction."`
	List    listCmd    `cmd:"" help:"List the transactions of a month."`
	Summary summaryCmd `cmd:"" help:"Show the totals of a month."`
	Month   monthCmd   `cmd:"" help:"Move to another month and show its totals."`
	Calc    calcCmd    `cmd:"" help:"Evaluate a keypad sequence without saving."`
	Budget  budgetCmd  `cmd:"" help:"Manage budgets."`
}

func main() {
	var cmdline commands
	kctx := kong.Parse(&cmdline,
		kong.Name("moneytracker"),
		kong.Description("Personal income, expense and transfer tracker."))

	cli.LoadEnvFile()
	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		kctx.FatalIfErrorf(fmt.Errorf("configuration: %w", err))
	}

	platformName := cfg.PaymentPlatform
	if cmdline.Platform != "" {
		platformName = cmdline.Platform
	}
	platform, err := entry.ParsePlatform(platformName)
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	provider, err := cli.NewRatesProvider(cfg, logger, cache.NewManager(logger))
	if err != nil {
		logger.Warn("Rates disabled", log.FieldError, err)
	}
	store := cli.InitLedger(ctx, logger, cfg, res, provider)

	runErr := kctx.Run(&app{
		ctx:      ctx,
		ledger:   store,
		platform: platform,
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   logger,
	})

	if err := store.Close(); err != nil {
		logger.Error("Closing ledger failed", log.FieldError, err)
	}
	if err := res.Cleanup(); err != nil {
		logger.Error("Closing backend failed", log.FieldError, err)
	}
	kctx.FatalIfErrorf(runErr)
}

// entryConfig builds a machine config from the ledger's preferences.
// Warnings go to errOut.
func (a *app) entryConfig(save entry.SaveFunc) entry.Config {
	state := a.ledger.State()
	return entry.Config{
		DefaultCurrency: state.DefaultCurrency,
		Rates:           state.Rates,
		Platform:        a.platform,
		OnSave:          save,
		OnWarning: func(err error) {
			fmt.Fprintf(a.errOut, "warning: %v\n", err)
		},
		Logger: a.logger,
	}
}
