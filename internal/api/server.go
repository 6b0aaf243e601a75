// Package api exposes the thread operation endpoint and the SSE
// protocol that streams assistant turns.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david8712403/lec-dashboard-sub000/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     log.Logger
	Threads    ThreadStore // Required
	Runner     TurnRunner  // Required
	Pool       *pgxpool.Pool
	TrustProxy bool // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst  int  // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON/SSE HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Threads == nil {
		return nil, errors.New("thread store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("turn runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ops := &opsHandler{store: cfg.Threads, runner: cfg.Runner, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/threads/ops", ops.handle)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first: Recovery → Logging → RateLimit.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", healthz(logger))
	topMux.HandleFunc("GET /readyz", readyz(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
