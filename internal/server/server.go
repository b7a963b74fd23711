// Package server is the HTTP front of the pipeline: trigger endpoints,
// budget reporting, and the WebSocket bridge for run events.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lukemartin/snipebot/internal/server/handler"
	"github.com/lukemartin/snipebot/internal/server/middleware"
	"github.com/lukemartin/snipebot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// SharedSecret gates the API when non-empty.
	SharedSecret string
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Runs   *handler.RunHandler
	Budget *handler.BudgetHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and builds the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required, handled before the auth wrap below
	// would matter operationally; the gate still applies uniformly).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pipeline triggers.
	mux.HandleFunc("POST /api/runs", handlers.Runs.TriggerRun)
	mux.HandleFunc("POST /api/runs/stream", handlers.Runs.StreamRun)

	// Budget reporting and configuration.
	mux.HandleFunc("GET /api/budget", handlers.Budget.GetBudget)
	mux.HandleFunc("PUT /api/budget", handlers.Budget.UpdateBudget)

	// WebSocket bridge.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.SharedSecret)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     h,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the sync trigger can legitimately hold a
		// response open for the full run duration, and SSE streams longer.
		IdleTimeout: 60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start listens for HTTP requests until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
