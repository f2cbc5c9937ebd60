package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneytracker/internal/entry"
	"moneytracker/internal/ledger"
	"moneytracker/internal/log"
)

// Options configures a Server.
type Options struct {
	Ledger *ledger.Store
	// Platform selects the launch target returned for payment apps.
	Platform entry.Platform
	// Ping reports backend readiness. Nil means always ready.
	Ping func(ctx context.Context) error
	// RequestsPerMinute bounds writes per client IP. Zero uses the default.
	RequestsPerMinute int
	Logger            *log.Logger
}

// Server exposes the ledger and the entry machine over JSON.
type Server struct {
	http.Server
	ledger      *ledger.Store
	platform    entry.Platform
	ping        func(ctx context.Context) error
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Platform == "" {
		opts.Platform = entry.Android
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		ledger:      opts.Ledger,
		platform:    opts.Platform,
		ping:        opts.Ping,
		logger:      logger,
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		metrics:     &securityMetrics{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /transactions/{id}", s.handleEditTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("PUT /month", s.handleSetMonth)
	mux.HandleFunc("POST /month/next", s.handleNextMonth)
	mux.HandleFunc("POST /month/previous", s.handlePreviousMonth)

	mux.HandleFunc("GET /budgets", s.handleListBudgets)
	mux.HandleFunc("POST /budgets", s.handleAddBudget)
	mux.HandleFunc("DELETE /budgets/{id}", s.handleDeleteBudget)
	mux.HandleFunc("PUT /category-budgets/{category}", s.handleSetCategoryBudget)

	mux.HandleFunc("GET /preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /preferences", s.handleSetPreferences)
	mux.HandleFunc("POST /rates/refresh", s.handleRefreshRates)
	mux.HandleFunc("GET /catalog", s.handleCatalog)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           log.Middleware(logger)(s.withSecurity(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// SecurityStats returns the rate limit and suspicious request counters.
func (s *Server) SecurityStats() SecurityStats {
	return s.metrics.snapshot()
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("backend not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
