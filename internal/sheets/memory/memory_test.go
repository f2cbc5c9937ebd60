package memory

import (
	"context"
	"testing"
	"time"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

func sample(id int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(12),
		Currency: "USD",
		Category: "Travel",
		Account:  "Cash",
		Date:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_UpsertDeleteList(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, id := range []int64{3, 1, 2} {
		if err := s.Upsert(ctx, sample(id)); err != nil {
			t.Fatalf("Upsert(%d) error = %v", id, err)
		}
	}
	updated := sample(2)
	updated.Note = "edited"
	if err := s.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert error = %v", err)
	}
	if got, _ := s.Get(2); got.Note != "edited" {
		t.Errorf("row 2 not replaced, note = %q", got.Note)
	}

	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := s.Delete(ctx, 99); err != nil {
		t.Fatalf("Delete of missing row should succeed, got %v", err)
	}

	ids, _ := s.ListIDs(ctx)
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("ListIDs = %v, want [2 3]", ids)
	}
}

func TestStore_UpsertValidates(t *testing.T) {
	tx := sample(1)
	tx.Account = ""
	if err := New().Upsert(context.Background(), tx); err == nil {
		t.Fatal("expected validation error")
	}
}
