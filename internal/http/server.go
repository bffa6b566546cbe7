// Package http exposes the JSON API and the websocket live-query endpoint.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"finscope/internal/middleware/ratelimit"
	"finscope/internal/middleware/security"
	"finscope/internal/middleware/trace"
	"finscope/internal/services"
	"finscope/internal/session"
	"finscope/internal/watch"
)

type Server struct {
	http.Server

	sessions *session.Provider
	txns     *services.TransactionService
	hub      *watch.Hub

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, sessions *session.Provider, txns *services.TransactionService, hub *watch.Hub) *Server {
	mux := http.NewServeMux()

	s := &Server{
		sessions: sessions,
		txns:     txns,
		hub:      hub,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/me", s.handleMe)
	mux.HandleFunc("PUT /api/me", s.handleUpdateProfile)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/stats/totals", s.handleTotals)
	mux.HandleFunc("GET /api/stats/monthly", s.handleMonthlySeries)

	mux.HandleFunc("GET /api/live", s.handleLive)

	s.tracer = trace.NewMiddleware(extractClientIP)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limitMW := s.limiter.Middleware(extractClientIP, nil)

	handler := s.tracer.Middleware(headersMW.Middleware(s.limitMutations(limitMW, mux)))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// limitMutations applies the rate limiter to mutating methods only; reads and
// the live endpoint stay unthrottled.
func (s *Server) limitMutations(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		slog.Info("HTTP server stopped", "requests_served", s.tracer.TotalRequests())
	})
	return shutdownErr
}

func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
