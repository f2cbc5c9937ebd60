package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"moneytracker/internal/core"
	"moneytracker/internal/kv"
	"moneytracker/internal/ledger"
	"moneytracker/internal/rates"
	"moneytracker/internal/storage"

	"github.com/shopspring/decimal"
)

var dec = decimal.RequireFromString

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	snaps, err := kv.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("kv.OpenInMemory() error = %v", err)
	}
	store := ledger.NewStore(ledger.Options{
		Rows:            storage.NewMemoryRepository(),
		Snapshots:       snaps,
		Rates:           rates.NewStatic(core.RateTable{"USD": dec("1"), "EUR": dec("0.5")}),
		DefaultCurrency: "USD",
	})
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	opts.Ledger = store
	srv := NewServer(":0", opts)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = store.Close()
		_ = snaps.Close()
	})
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}

	down := newTestServer(t, Options{Ping: func(context.Context) error { return errors.New("db gone") }})
	if rr := do(t, down, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing ping status=%d", rr.Code)
	}
}

func TestCreateExpenseRequiresPayment(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/transactions", `{"amount":"12.50","category":"Travel","account":"Cash"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := len(srv.ledger.State().Transactions); got != 0 {
		t.Fatalf("transactions=%d after unpaid expense", got)
	}

	rr = do(t, srv, http.MethodPost, "/transactions", `{"amount":"12.50","category":"Travel","account":"Cash","payment":"cash"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[transactionResult](t, rr)
	if res.Transaction.ID == 0 || res.Transaction.Amount.StringFixed(2) != "12.50" {
		t.Errorf("transaction = %+v", res.Transaction)
	}
	if res.Launch != nil {
		t.Errorf("cash payment should not launch an app")
	}
	if loc := rr.Header().Get("Location"); loc != "/transactions/"+formatID(res.Transaction.ID) {
		t.Errorf("Location = %q", loc)
	}
}

func TestCreateExpenseWithPaymentApp(t *testing.T) {
	srv := newTestServer(t, Options{Platform: "ios"})

	rr := do(t, srv, http.MethodPost, "/transactions", `{"keys":"4*5=","category":"Shopping","account":"Credit Card","payment":"gpay"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[transactionResult](t, rr)
	if res.Launch == nil || res.Launch.URL != "tez://" {
		t.Errorf("launch = %+v", res.Launch)
	}
	if !res.Transaction.Amount.Equal(dec("20")) {
		t.Errorf("amount = %s, want 20", res.Transaction.Amount)
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing category", `{"type":"income","amount":"5","account":"Cash"}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"type":"income","amount":"-5","category":"Salary","account":"Cash"}`, http.StatusUnprocessableEntity},
		{"same account transfer", `{"type":"transfer","amount":"5","fromAccount":"Cash","toAccount":"Cash"}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"type":"income","category":"Gift","account":"Cash"}`, http.StatusUnprocessableEntity},
		{"unknown app", `{"amount":"5","category":"Other","account":"Cash","payment":"venmo"}`, http.StatusUnprocessableEntity},
		{"unknown field", `{"amount":"5","colour":"red"}`, http.StatusBadRequest},
		{"bad json", `{"amount":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/transactions", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
			if !strings.Contains(rr.Body.String(), `"error"`) {
				t.Errorf("body missing error field: %s", rr.Body.String())
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/transactions", `{"type":"income","amount":"100","category":"Salary","account":"Bank Account","note":"march"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode[transactionResult](t, rr).Transaction
	path := "/transactions/" + formatID(created.ID)

	rr = do(t, srv, http.MethodGet, path, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPut, path, `{"amount":"120"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit status=%d body=%s", rr.Code, rr.Body.String())
	}
	edited := decode[transactionResult](t, rr).Transaction
	if edited.ID != created.ID || !edited.Amount.Equal(dec("120")) || edited.Note != "march" {
		t.Errorf("edited = %+v", edited)
	}

	rr = do(t, srv, http.MethodGet, "/transactions?q=MARCH", "")
	list := decode[transactionList](t, rr)
	if len(list.Transactions) != 1 {
		t.Fatalf("search returned %d transactions", len(list.Transactions))
	}

	rr = do(t, srv, http.MethodGet, "/summary", "")
	summary := decode[summaryView](t, rr)
	if !summary.Summary.Income.Equal(dec("120")) {
		t.Errorf("income = %s", summary.Summary.Income)
	}

	if rr := do(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, path, ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPut, path, `{"amount":"1"}`); rr.Code != http.StatusNotFound {
		t.Errorf("edit deleted status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/transactions/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status=%d", rr.Code)
	}
}

func TestMonthNavigation(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/month", `{"month":"2025-01"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("set month status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[summaryView](t, rr).Month; got != "2025-01" {
		t.Errorf("month = %s", got)
	}

	rr = do(t, srv, http.MethodPost, "/month/previous", "")
	if got := decode[summaryView](t, rr).Month; got != "2024-12" {
		t.Errorf("previous month = %s", got)
	}
	do(t, srv, http.MethodPost, "/month/next", "")
	rr = do(t, srv, http.MethodPost, "/month/next", "")
	if got := decode[summaryView](t, rr).Month; got != "2025-02" {
		t.Errorf("next month = %s", got)
	}

	if rr := do(t, srv, http.MethodPut, "/month", `{"month":"February"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad month status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/transactions?month=2025-13", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad month filter status=%d", rr.Code)
	}
}

func TestBudgets(t *testing.T) {
	srv := newTestServer(t, Options{})

	do(t, srv, http.MethodPost, "/transactions", `{"amount":"30","category":"Travel","account":"Cash","payment":"cash"}`)

	rr := do(t, srv, http.MethodPost, "/budgets", `{"category":"Travel","limit":"25"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add budget status=%d body=%s", rr.Code, rr.Body.String())
	}
	b := decode[budgetView](t, rr)
	if b.ID == "" || b.Name != "Travel" || !b.Spent.Equal(dec("30")) || !b.Exceeded {
		t.Errorf("budget = %+v", b)
	}

	if rr := do(t, srv, http.MethodPost, "/budgets", `{"category":"Travel","limit":"-1"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative limit status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPut, "/category-budgets/Food", `{"limit":"200"}`)
	list := decode[budgetList](t, rr)
	if !list.CategoryBudgets["Food"].Equal(dec("200")) {
		t.Errorf("category budgets = %v", list.CategoryBudgets)
	}
	rr = do(t, srv, http.MethodPut, "/category-budgets/Food", `{"limit":"0"}`)
	if _, ok := decode[budgetList](t, rr).CategoryBudgets["Food"]; ok {
		t.Error("zero limit should remove the category budget")
	}

	if rr := do(t, srv, http.MethodDelete, "/budgets/"+b.ID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete budget status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/budgets/"+b.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("delete missing budget status=%d", rr.Code)
	}
}

func TestPreferencesAndCatalog(t *testing.T) {
	srv := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPut, "/preferences", `{"language":"it","theme":"DARK","defaultCurrency":"eur"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	p := decode[preferences](t, rr)
	if p.Language != "it" || p.Theme != ledger.ThemeDark || p.DefaultCurrency != "EUR" {
		t.Errorf("preferences = %+v", p)
	}
	if rr := do(t, srv, http.MethodPut, "/preferences", `{"theme":"sepia"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad theme status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodGet, "/catalog", "")
	c := decode[catalog](t, rr)
	if len(c.PaymentApps) != 3 || c.Launch["phonepe"].Package != "com.phonepe.app" {
		t.Errorf("catalog = %+v", c)
	}

	if rr := do(t, srv, http.MethodPost, "/rates/refresh", ""); rr.Code != http.StatusOK {
		t.Errorf("rates refresh status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	srv := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodGet, "/.env", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status=%d", rr.Code)
	}
	if got := srv.SecurityStats().SuspiciousRequests; got != 1 {
		t.Errorf("SuspiciousRequests = %d", got)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	srv := newTestServer(t, Options{RequestsPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/month/next", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/month/next", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Errorf("status=%d Retry-After=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := do(t, srv, http.MethodGet, "/summary", ""); rr.Code != http.StatusOK {
		t.Errorf("reads are not limited, status=%d", rr.Code)
	}
}
