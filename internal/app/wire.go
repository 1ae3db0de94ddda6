package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/davrix/relicflip/internal/blob/s3"
	"github.com/davrix/relicflip/internal/cache"
	"github.com/davrix/relicflip/internal/cache/redis"
	"github.com/davrix/relicflip/internal/config"
	"github.com/davrix/relicflip/internal/domain"
	"github.com/davrix/relicflip/internal/history"
	"github.com/davrix/relicflip/internal/notify"
	"github.com/davrix/relicflip/internal/platform/wfm"
	"github.com/davrix/relicflip/internal/scheduler"
)

// Dependencies bundles everything the application modes need. Optional
// backends (Postgres, Redis, S3) are nil when disabled; the pipeline runs on
// in-process fallbacks.
type Dependencies struct {
	Snapshots *cache.SnapshotCache
	Fetcher   *wfm.Client
	Scheduler *scheduler.Scheduler

	History  *history.Store
	Mirror   domain.SnapshotMirror
	Archiver *s3blob.Archiver
	Notifier *notify.Notifier
}

// Wire constructs concrete implementations from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Snapshots: cache.NewSnapshotCache(),
	}

	// --- Rate limiter: Redis-backed when available, local otherwise ---
	var limiter domain.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		limiter = redis.NewRateLimiter(redisClient, cfg.Market.RatePerWindow, cfg.Market.RateWindow.Duration)
		deps.Mirror = redis.NewSnapshotMirror(redisClient)
	} else {
		limiter = cache.NewLocalRateLimiter(cfg.Market.RatePerWindow, cfg.Market.RateWindow.Duration)
	}

	// --- Upstream marketplace client ---
	deps.Fetcher = wfm.NewClient(wfm.Config{
		BaseURL:        cfg.Market.BaseURL,
		UserAgent:      cfg.Market.UserAgent,
		RequestTimeout: cfg.Market.RequestTimeout.Duration,
		MaxAttempts:    cfg.Market.MaxAttempts,
		BackoffBase:    cfg.Market.BackoffBase.Duration,
		BackoffCap:     cfg.Market.BackoffCap.Duration,
	}, limiter, logger)

	// --- PostgreSQL history ---
	if cfg.History.Enabled {
		pgClient, err := history.NewClient(ctx, history.ClientConfig{
			DSN:      cfg.History.DSN,
			Host:     cfg.History.Host,
			Port:     cfg.History.Port,
			Database: cfg.History.Database,
			User:     cfg.History.User,
			Password: cfg.History.Password,
			SSLMode:  cfg.History.SSLMode,
			MaxConns: cfg.History.PoolMaxConns,
			MinConns: cfg.History.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.History.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.History = history.NewStore(pgClient, cfg.History.QueueSize, logger)
	}

	// --- S3 archiver (requires history) ---
	if cfg.S3.Enabled && deps.History != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Ping(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			deps.History,
			deps.History,
			s3blob.NewWriter(s3Client),
			cfg.S3.ArchiveAfter.Duration,
			logger,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	// --- Scheduler ---
	deps.Scheduler = scheduler.New(scheduler.Config{
		Items:           cfg.Catalog(),
		Platform:        cfg.Market.Platform,
		FeePct:          cfg.Scheduler.FeePct,
		RefreshInterval: cfg.Scheduler.RefreshInterval.Duration,
		CycleTimeout:    cfg.Scheduler.CycleTimeout.Duration,
		Workers:         cfg.Scheduler.Workers,
		AlertMinProfit:  cfg.Scheduler.AlertMinProfit,
		AlertMinMargin:  cfg.Scheduler.AlertMinMargin,
	}, deps.Fetcher, deps.Snapshots, logger)

	if deps.History != nil {
		deps.Scheduler.SetHistory(deps.History)
	}
	if deps.Mirror != nil {
		deps.Scheduler.SetMirror(deps.Mirror)
	}
	if deps.Notifier != nil {
		deps.Scheduler.AddAlertSink(deps.Notifier)
	}

	return deps, cleanup, nil
}
