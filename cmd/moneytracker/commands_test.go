package main

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"moneytracker/internal/entry"
	"moneytracker/internal/kv"
	"moneytracker/internal/ledger"
	"moneytracker/internal/log"
	"moneytracker/internal/storage"

	"github.com/alecthomas/kong"
)

type testApp struct {
	*app
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	snaps, err := kv.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("kv.OpenInMemory() error = %v", err)
	}
	store := ledger.NewStore(ledger.Options{
		Rows:            storage.NewMemoryRepository(),
		Snapshots:       snaps,
		DefaultCurrency: "USD",
	})
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
		_ = snaps.Close()
	})

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testApp{
		app: &app{
			ctx:      context.Background(),
			ledger:   store,
			platform: entry.Android,
			out:      out,
			errOut:   errOut,
			logger:   log.Discard(),
		},
		out:    out,
		errOut: errOut,
	}
}

// run parses args with the real grammar and runs the selected command.
func (a *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	a.out.Reset()
	var cmds commands
	parser, err := kong.New(&cmds, kong.Name("moneytracker"))
	if err != nil {
		t.Fatalf("kong.New() error = %v", err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(a.app)
}

func TestAddListDelete(t *testing.T) {
	a := newTestApp(t)

	err := a.run(t, "add", "--amount", "12.50", "--category", "Travel", "--account", "Cash")
	if !errors.Is(err, entry.ErrPaymentRequired) {
		t.Fatalf("add without payment error = %v", err)
	}

	if err := a.run(t, "add", "-a", "12.50", "-c", "Travel", "--account", "Cash", "-p", "phonepe", "-n", "taxi"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if !strings.Contains(a.out.String(), "Saved transaction") || !strings.Contains(a.out.String(), "com.phonepe.app") {
		t.Errorf("add output = %q", a.out.String())
	}

	txs := a.ledger.Transactions(ledger.Filter{})
	if len(txs) != 1 {
		t.Fatalf("transactions = %d", len(txs))
	}
	id := txs[0].ID

	if err := a.run(t, "list", "--search", "TAXI"); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(a.out.String(), "12.50 USD") {
		t.Errorf("list output = %q", a.out.String())
	}

	if err := a.run(t, "edit", strconv.FormatInt(id, 10), "--amount", "15"); err != nil {
		t.Fatalf("edit error = %v", err)
	}
	if got, _ := a.ledger.Get(id); got.Amount.StringFixed(2) != "15.00" || got.Note != "taxi" {
		t.Errorf("edited = %+v", got)
	}

	if err := a.run(t, "delete", strconv.FormatInt(id, 10)); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if err := a.run(t, "delete", strconv.FormatInt(id, 10)); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("second delete error = %v", err)
	}
	if err := a.run(t, "list"); err != nil || !strings.Contains(a.out.String(), "No transactions.") {
		t.Errorf("empty list = %q, %v", a.out.String(), err)
	}
}

func TestEditClearsNote(t *testing.T) {
	a := newTestApp(t)

	if err := a.run(t, "add", "-t", "income", "-a", "50", "-c", "Gift", "--account", "Cash", "-n", "birthday"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	id := a.ledger.Transactions(ledger.Filter{})[0].ID
	arg := strconv.FormatInt(id, 10)

	if err := a.run(t, "edit", arg, "--clear-note", "-n", "party"); err == nil {
		t.Error("--clear-note with --note should fail")
	}
	if err := a.run(t, "edit", arg, "--clear-note"); err != nil {
		t.Fatalf("edit error = %v", err)
	}
	got, err := a.ledger.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Note != "" || got.Amount.StringFixed(2) != "50.00" {
		t.Errorf("edited = %+v", got)
	}
}

func TestTransferAndSummary(t *testing.T) {
	a := newTestApp(t)

	if err := a.run(t, "add", "-t", "income", "-k", "1000", "-c", "Salary", "--account", "Bank Account"); err != nil {
		t.Fatalf("income error = %v", err)
	}
	if err := a.run(t, "add", "-t", "transfer", "-a", "200", "--from", "Bank Account", "--to", "Savings"); err != nil {
		t.Fatalf("transfer error = %v", err)
	}
	if err := a.run(t, "add", "-a", "40", "-c", "Food & Dining", "--account", "Cash", "-p", "cash"); err != nil {
		t.Fatalf("expense error = %v", err)
	}

	if err := a.run(t, "summary"); err != nil {
		t.Fatalf("summary error = %v", err)
	}
	out := a.out.String()
	for _, want := range []string{"1000.00", "40.00", "960.00", "Food & Dining"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	if err := a.run(t, "add", "-t", "transfer", "-a", "5", "--from", "Cash", "--to", "Cash"); !errors.Is(err, entry.ErrSameAccountTransfer) {
		t.Errorf("same account transfer error = %v", err)
	}
}

func TestMonthCommand(t *testing.T) {
	a := newTestApp(t)

	if err := a.run(t, "month", "2025-01"); err != nil {
		t.Fatalf("month error = %v", err)
	}
	if !strings.Contains(a.out.String(), "January 2025") {
		t.Errorf("output = %q", a.out.String())
	}
	if err := a.run(t, "month", "prev"); err != nil {
		t.Fatalf("month prev error = %v", err)
	}
	if !strings.Contains(a.out.String(), "December 2024") {
		t.Errorf("output = %q", a.out.String())
	}
	if err := a.run(t, "month", "soon"); err == nil {
		t.Error("expected error for an invalid month")
	}
}

func TestCalc(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		keys    string
		want    string
		wantErr error
	}{
		{keys: "2+3=", want: "5.00"},
		{keys: "10/4=", want: "2.50"},
		{keys: "7x6=", want: "42.00"},
		{keys: "12+", want: "12+ 0"},
		{keys: "1/0=", wantErr: entry.ErrDivisionByZero},
	}
	for _, tt := range tests {
		t.Run(tt.keys, func(t *testing.T) {
			err := a.run(t, "calc", tt.keys)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("calc error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("calc error = %v", err)
			}
			if got := strings.TrimSpace(a.out.String()); got != tt.want {
				t.Errorf("calc %q = %q, want %q", tt.keys, got, tt.want)
			}
		})
	}
}

func TestBudgetCommands(t *testing.T) {
	a := newTestApp(t)

	if err := a.run(t, "add", "-a", "30", "-c", "Travel", "--account", "Cash", "-p", "cash"); err != nil {
		t.Fatalf("add error = %v", err)
	}
	if err := a.run(t, "budget", "add", "Travel", "25", "--name", "Trips"); err != nil {
		t.Fatalf("budget add error = %v", err)
	}
	if !strings.Contains(a.out.String(), "Trips") || !strings.Contains(a.out.String(), "-5.00 !") {
		t.Errorf("budget add output = %q", a.out.String())
	}
	if err := a.run(t, "budget", "add", "Travel", "0"); err == nil {
		t.Error("zero limit accepted")
	}

	if err := a.run(t, "budget", "set-category", "Food", "150"); err != nil {
		t.Fatalf("set-category error = %v", err)
	}
	if err := a.run(t, "budget", "list"); err != nil {
		t.Fatalf("budget list error = %v", err)
	}
	if !strings.Contains(a.out.String(), "150.00") {
		t.Errorf("budget list output = %q", a.out.String())
	}

	id := a.ledger.State().Budgets[0].ID
	if err := a.run(t, "budget", "delete", id); err != nil {
		t.Fatalf("budget delete error = %v", err)
	}
	if err := a.run(t, "budget", "delete", id); err == nil {
		t.Error("deleting a missing budget should fail")
	}
}
