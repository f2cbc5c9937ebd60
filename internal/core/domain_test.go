package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTransactionType(t *testing.T) {
	for _, in := range []string{"income", " EXPENSE ", "Transfer"} {
		if _, err := ParseTransactionType(in); err != nil {
			t.Fatalf("%q expected ok, got %v", in, err)
		}
	}
	if _, err := ParseTransactionType("refund"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestTransactionValidate(t *testing.T) {
	date := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	good := Transaction{
		ID:       1,
		Amount:   decimal.RequireFromString("12.50"),
		Currency: "USD",
		Type:     Expense,
		Category: "Food & Dining",
		Account:  "Cash",
		Date:     date,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	transfer := Transaction{
		ID:        2,
		Amount:    decimal.NewFromInt(10),
		Currency:  "USD",
		Type:      Transfer,
		Category:  TransferCategory,
		Account:   "Cash",
		ToAccount: "Savings",
		Date:      date,
	}
	if err := transfer.Validate(); err != nil {
		t.Fatalf("expected transfer ok, got %v", err)
	}

	mutate := func(base Transaction, f func(*Transaction)) Transaction {
		f(&base)
		return base
	}
	bads := []Transaction{
		mutate(good, func(tx *Transaction) { tx.Type = "REFUND" }),
		mutate(good, func(tx *Transaction) { tx.Amount = decimal.Zero }),
		mutate(good, func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) }),
		mutate(good, func(tx *Transaction) { tx.Amount = decimal.NewFromInt(1_000_000_000) }),
		mutate(good, func(tx *Transaction) { tx.Currency = "" }),
		mutate(good, func(tx *Transaction) { tx.Date = time.Time{} }),
		mutate(good, func(tx *Transaction) { tx.Account = "" }),
		mutate(good, func(tx *Transaction) { tx.Category = " " }),
		mutate(good, func(tx *Transaction) { tx.ToAccount = "Savings" }),
		mutate(transfer, func(tx *Transaction) { tx.ToAccount = "" }),
		mutate(transfer, func(tx *Transaction) { tx.ToAccount = "Cash" }),
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionMatches(t *testing.T) {
	tx := Transaction{Note: "Lunch with Ana", Category: "Food & Dining", Account: "Credit Card"}
	for _, term := range []string{"", "lunch", "DINING", "credit"} {
		if !tx.Matches(term) {
			t.Fatalf("expected %q to match", term)
		}
	}
	if tx.Matches("salary") {
		t.Fatalf("did not expect salary to match")
	}
}
