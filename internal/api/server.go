package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Nicolanasr/expenses-tracker/internal/serverdb"
)

// Server is the HTTP API server for expenses-server.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) *Server {
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the HTTP handler. Exposed for httptest-based tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Auth (public, limited per IP)
	mux.HandleFunc("POST /v1/auth/signup", s.withIPRateLimit(s.handleSignup, s.config.RateLimitAuth))

	// Offline-replay dispatcher
	mux.HandleFunc("POST /v1/sync/mutate", s.requireAuth(s.withRateLimit(s.handleMutate, s.config.RateLimitMutate)))

	// Interactive endpoints (same underlying store logic as the dispatcher)
	mux.HandleFunc("GET /v1/transactions", s.requireAuth(s.withRateLimit(s.handleListTransactions, s.config.RateLimitOther)))
	mux.HandleFunc("POST /v1/transactions", s.requireAuth(s.withRateLimit(s.handleCreateTransaction, s.config.RateLimitOther)))
	mux.HandleFunc("PATCH /v1/transactions/{id}", s.requireAuth(s.withRateLimit(s.handleUpdateTransaction, s.config.RateLimitOther)))
	mux.HandleFunc("DELETE /v1/transactions/{id}", s.requireAuth(s.withRateLimit(s.handleDeleteTransaction, s.config.RateLimitOther)))

	mux.HandleFunc("GET /v1/categories", s.requireAuth(s.withRateLimit(s.handleListCategories, s.config.RateLimitOther)))
	mux.HandleFunc("POST /v1/categories", s.requireAuth(s.withRateLimit(s.handleCreateCategory, s.config.RateLimitOther)))
	mux.HandleFunc("PATCH /v1/categories/{id}", s.requireAuth(s.withRateLimit(s.handleUpdateCategory, s.config.RateLimitOther)))
	mux.HandleFunc("DELETE /v1/categories/{id}", s.requireAuth(s.withRateLimit(s.handleDeleteCategory, s.config.RateLimitOther)))

	mux.HandleFunc("PUT /v1/budgets", s.requireAuth(s.withRateLimit(s.handleSaveBudget, s.config.RateLimitOther)))
	mux.HandleFunc("GET /v1/budgets/summary", s.requireAuth(s.withRateLimit(s.handleBudgetSummary, s.config.RateLimitOther)))

	var handler http.Handler = mux
	handler = loggingMiddleware(handler)
	handler = metricsMiddleware(s.metrics)(handler)
	handler = recoveryMiddleware(handler)
	handler = loggerMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics handles GET /metricz.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleSignup handles POST /v1/auth/signup: creates a user and mints their
// first API key.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.config.AllowSignup {
		writeError(w, http.StatusForbidden, "signup is disabled")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	user, err := s.store.CreateUser(req.Email)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	key, err := s.store.CreateAPIKey(user.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"user_id": user.ID,
		"email":   user.Email,
		"api_key": key,
	})
}
