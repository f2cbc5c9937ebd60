package google

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/log"

	"github.com/shopspring/decimal"
)

// fakeAPI keeps the sheet as a slice of rows; only column A matters for reads.
type fakeAPI struct {
	rows    [][]any
	failGet error
	deleted []int
}

func (f *fakeAPI) get(_ context.Context, rng string) ([][]any, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	out := make([][]any, 0, len(f.rows))
	for _, r := range f.rows {
		if len(r) == 0 {
			out = append(out, nil)
			continue
		}
		out = append(out, []any{r[0]})
	}
	return out, nil
}

func (f *fakeAPI) update(_ context.Context, rng string, rows [][]any) error {
	n, err := rowOf(rng)
	if err != nil {
		return err
	}
	for len(f.rows) < n {
		f.rows = append(f.rows, nil)
	}
	f.rows[n-1] = rows[0]
	return nil
}

func (f *fakeAPI) append(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}

func (f *fakeAPI) deleteRow(_ context.Context, _ string, row int) error {
	f.deleted = append(f.deleted, row)
	f.rows = append(f.rows[:row-1], f.rows[row:]...)
	return nil
}

// rowOf extracts the row number from "Sheet!A3:K3".
func rowOf(rng string) (int, error) {
	_, cells, ok := strings.Cut(rng, "!A")
	if !ok {
		return 0, fmt.Errorf("bad range %q", rng)
	}
	n, _, _ := strings.Cut(cells, ":")
	return strconv.Atoi(n)
}

func sampleTx(id int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		Amount:   decimal.RequireFromString("12.50"),
		Currency: "USD",
		Type:     core.Expense,
		Category: "Food",
		Account:  "Cash",
		Date:     time.Date(2025, 5, 14, 18, 30, 0, 0, time.UTC),
	}
}

func TestClient_UpsertWritesHeaderThenAppends(t *testing.T) {
	api := &fakeAPI{}
	c := newClient(api, "Transactions", log.Discard())

	if err := c.Upsert(context.Background(), sampleTx(1)); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(api.rows) != 2 {
		t.Fatalf("rows = %d, want header plus one", len(api.rows))
	}
	if api.rows[0][0] != "ID" {
		t.Errorf("first row should be the header, got %v", api.rows[0])
	}
	if api.rows[1][0] != "1" || api.rows[1][6] != "12.50" {
		t.Errorf("unexpected data row %v", api.rows[1])
	}
}

func TestClient_UpsertReplacesExistingRow(t *testing.T) {
	api := &fakeAPI{rows: [][]any{header, {float64(1)}, {float64(2)}}}
	c := newClient(api, "Transactions", log.Discard())

	tx := sampleTx(2)
	tx.Note = "edited"
	if err := c.Upsert(context.Background(), tx); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(api.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(api.rows))
	}
	if api.rows[2][9] != "edited" {
		t.Errorf("row 3 not rewritten: %v", api.rows[2])
	}
}

func TestClient_UpsertRejectsInvalid(t *testing.T) {
	api := &fakeAPI{}
	c := newClient(api, "Transactions", log.Discard())

	tx := sampleTx(1)
	tx.Category = ""
	if err := c.Upsert(context.Background(), tx); err == nil {
		t.Fatal("expected validation error")
	}
	if len(api.rows) != 0 {
		t.Error("nothing should be written for an invalid transaction")
	}
}

func TestClient_Delete(t *testing.T) {
	api := &fakeAPI{rows: [][]any{header, {"1"}, {"2"}, {"3"}}}
	c := newClient(api, "Transactions", log.Discard())

	if err := c.Delete(context.Background(), 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != 3 {
		t.Errorf("deleted rows = %v, want [3]", api.deleted)
	}

	if err := c.Delete(context.Background(), 99); err != nil {
		t.Errorf("deleting a missing ID should succeed, got %v", err)
	}
	if len(api.deleted) != 1 {
		t.Error("missing ID should not delete anything")
	}
}

func TestClient_ListIDs(t *testing.T) {
	api := &fakeAPI{rows: [][]any{header, {float64(5)}, nil, {"7"}, {"note"}}}
	c := newClient(api, "Transactions", log.Discard())

	ids, err := c.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("ListIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 7 {
		t.Errorf("ids = %v, want [5 7]", ids)
	}
}

func TestClient_ReadError(t *testing.T) {
	api := &fakeAPI{failGet: errors.New("quota exceeded")}
	c := newClient(api, "Transactions", log.Discard())

	if err := c.Upsert(context.Background(), sampleTx(1)); err == nil {
		t.Error("Upsert should surface read errors")
	}
	if _, err := c.ListIDs(context.Background()); err == nil {
		t.Error("ListIDs should surface read errors")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   int64
		wantOK bool
	}{
		{"float", float64(1715700000000), 1715700000000, true},
		{"string", " 42 ", 42, true},
		{"int", 3, 3, true},
		{"fraction", 1.5, 0, false},
		{"header", "ID", 0, false},
		{"zero", "0", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseID(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseID(%v) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToRow_ConvertedAmount(t *testing.T) {
	tx := sampleTx(1)
	conv := decimal.RequireFromString("11.1")
	tx.ConvertedAmount = &conv

	row := toRow(tx)
	if len(row) != len(header) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(header))
	}
	if row[8] != "11.10" {
		t.Errorf("converted amount = %v, want 11.10", row[8])
	}
	if row[1] != "2025-05-14 18:30" {
		t.Errorf("date = %v", row[1])
	}
}
