package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davrix/relicflip/internal/domain"
	"github.com/davrix/relicflip/internal/history"
	"github.com/davrix/relicflip/internal/server"
	"github.com/davrix/relicflip/internal/server/handler"
	"github.com/davrix/relicflip/internal/server/ws"
)

// shutdownGrace is how long the HTTP server gets to drain on shutdown.
const shutdownGrace = 10 * time.Second

// WatchMode runs the pipeline without the HTTP surface: scheduler, history
// writer, notifier, and archiver.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPipeline(ctx, g, deps)

	err := g.Wait()
	if ctx.Err() != nil {
		return context.Canceled
	}
	return err
}

// ServeMode runs the full pipeline plus the WebSocket/HTTP server.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(ws.Config{
		DefaultPlatform: a.cfg.Market.Platform,
		DefaultStrategy: domain.StrategyBalanced,
	}, deps.Snapshots, a.logger)
	deps.Scheduler.AddSink(hub)
	deps.Scheduler.AddAlertSink(hub)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	a.startPipeline(ctx, g, deps)

	health := handler.NewHealthHandler(deps.Snapshots, hub)
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, health, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return context.Canceled
	}
	return err
}

// startPipeline launches the goroutines common to both modes. Context
// cancellation is the only clean way out of any of them.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		err := deps.Scheduler.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if deps.History != nil {
		g.Go(func() error {
			err := deps.History.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})

		// The archiver trims after each upload; without it the retention
		// loop is the only thing keeping the table bounded.
		if deps.Archiver == nil && a.cfg.History.Retention.Duration > 0 {
			retention := a.cfg.History.Retention.Duration
			g.Go(func() error {
				err := history.RunRetention(ctx, deps.History, retention, history.RetentionInterval, a.logger)
				if ctx.Err() != nil {
					return nil
				}
				return err
			})
		}
	}

	if deps.Notifier != nil {
		g.Go(func() error {
			err := deps.Notifier.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	if deps.Archiver != nil {
		interval := a.cfg.S3.ArchiveInterval.Duration
		g.Go(func() error {
			err := deps.Archiver.RunLoop(ctx, interval)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
}
