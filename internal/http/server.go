// Package http serves the JSON API: transactions, summaries, suggestions,
// statistics, rainfall, spreadsheet downloads and backups.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"inventario/internal/backup"
	"inventario/internal/ledger"
	"inventario/internal/rain"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Deps carries the collaborators the server exposes over HTTP.
type Deps struct {
	Store       *ledger.Store
	Suggestions *ledger.SuggestionStore
	Rain        *rain.Store
	Backups     *backup.Manager
	Rates       ledger.RateResolver
}

type Server struct {
	http.Server
	deps         Deps
	limiter      *ipLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, rps float64, burst int) *Server {
	mux := http.NewServeMux()

	s := &Server{
		deps:    deps,
		limiter: newIPLimiter(rps, burst),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handlePatchTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/months", s.handleMonths)
	mux.HandleFunc("GET /api/summary/{month}", s.handleSummary)

	mux.HandleFunc("GET /api/suggestions/{category}", s.handleListSuggestions)
	mux.HandleFunc("DELETE /api/suggestions/{category}", s.handleRemoveSuggestion)

	mux.HandleFunc("GET /api/stats/monthly/{year}", s.handleMonthlyStats)
	mux.HandleFunc("GET /api/stats/yearly", s.handleYearlyStats)

	mux.HandleFunc("GET /api/rates/{date}", s.handleRate)
	mux.HandleFunc("POST /api/rates/purge", s.handlePurgeRates)

	mux.HandleFunc("GET /api/rainfall", s.handleListRainfall)
	mux.HandleFunc("POST /api/rainfall", s.handleUpsertRainfall)
	mux.HandleFunc("DELETE /api/rainfall/{id}", s.handleDeleteRainfall)

	mux.HandleFunc("GET /api/export/transactions", s.handleExportTransactions)
	mux.HandleFunc("GET /api/export/rainfall", s.handleExportRainfall)

	mux.HandleFunc("GET /api/backup", s.handleExportBackup)
	mux.HandleFunc("POST /api/backup", s.handleImportBackup)

	return s
}

// withMiddleware applies request-id tracing, structured request logging,
// security headers and per-IP rate limiting to every route.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ip := clientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", ip,
			"user_agent", r.Header.Get("User-Agent"))

		if !s.limiter.allow(ip) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", ip)
	})
}

// Shutdown stops the limiter sweep and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
