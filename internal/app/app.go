// Package app provides the top-level application lifecycle for relicflip. It
// wires the pipeline (fetcher, scheduler, cache, history, hub, notifier,
// archiver) and starts the goroutines the configured mode needs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/davrix/relicflip/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
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

// Run wires all dependencies, selects the operating mode, and blocks until
// the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("platform", a.cfg.Market.Platform),
		slog.Int("items", len(a.cfg.Items)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	mode := a.effectiveMode()
	if mode != strings.ToLower(a.cfg.Mode) {
		a.logger.InfoContext(ctx, "server disabled, running pipeline only")
	}

	switch mode {
	case "watch":
		return a.WatchMode(ctx, deps)
	case "serve":
		return a.ServeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// effectiveMode resolves the configured mode against the server.enabled
// flag: serve with the server switched off degrades to watch.
func (a *App) effectiveMode() string {
	mode := strings.ToLower(a.cfg.Mode)
	if mode == "serve" && !a.cfg.Server.Enabled {
		return "watch"
	}
	return mode
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
