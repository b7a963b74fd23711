// Package app provides the top-level application lifecycle for the snipebot
// pipeline. It wires together all dependencies (signal bus, budget ledger,
// source clients, the snipe engine, the run queue, and notifications) and
// runs the HTTP API until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemartin/snipebot/internal/config"
	"github.com/lukemartin/snipebot/internal/server"
	"github.com/lukemartin/snipebot/internal/server/handler"
	"github.com/lukemartin/snipebot/internal/server/ws"
)

// shutdownGrace bounds how long in-flight HTTP requests get to drain.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the HTTP
// server and WebSocket hub, and blocks until the context is cancelled. On
// return the registered cleanup functions run in reverse order.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("max_concurrent_runs", a.cfg.Runs.MaxConcurrent),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if !a.cfg.Server.Enabled {
		return fmt.Errorf("app: server is the only operating surface; enable it in config")
	}

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub mirrors run events from the signal bus.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		SharedSecret: a.cfg.Server.SharedSecret,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Runs:   handler.NewRunHandler(deps.Service, a.logger),
		Budget: handler.NewBudgetHandler(deps.Ledger, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
