package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RELICFLIP_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus
// environment overrides apply. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RELICFLIP_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setStr(&cfg.Market.BaseURL, "RELICFLIP_MARKET_BASE_URL")
	setStr(&cfg.Market.Platform, "RELICFLIP_MARKET_PLATFORM")
	setStr(&cfg.Market.UserAgent, "RELICFLIP_MARKET_USER_AGENT")
	setDuration(&cfg.Market.RequestTimeout, "RELICFLIP_MARKET_REQUEST_TIMEOUT")
	setInt(&cfg.Market.MaxAttempts, "RELICFLIP_MARKET_MAX_ATTEMPTS")
	setDuration(&cfg.Market.BackoffBase, "RELICFLIP_MARKET_BACKOFF_BASE")
	setDuration(&cfg.Market.BackoffCap, "RELICFLIP_MARKET_BACKOFF_CAP")
	setInt(&cfg.Market.RatePerWindow, "RELICFLIP_MARKET_RATE_PER_WINDOW")
	setDuration(&cfg.Market.RateWindow, "RELICFLIP_MARKET_RATE_WINDOW")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.RefreshInterval, "RELICFLIP_SCHEDULER_REFRESH_INTERVAL")
	setDuration(&cfg.Scheduler.CycleTimeout, "RELICFLIP_SCHEDULER_CYCLE_TIMEOUT")
	setInt(&cfg.Scheduler.Workers, "RELICFLIP_SCHEDULER_WORKERS")
	setFloat64(&cfg.Scheduler.FeePct, "RELICFLIP_SCHEDULER_FEE_PCT")
	setFloat64(&cfg.Scheduler.AlertMinProfit, "RELICFLIP_SCHEDULER_ALERT_MIN_PROFIT")
	setFloat64(&cfg.Scheduler.AlertMinMargin, "RELICFLIP_SCHEDULER_ALERT_MIN_MARGIN")

	// ── History ──
	setBool(&cfg.History.Enabled, "RELICFLIP_HISTORY_ENABLED")
	setStr(&cfg.History.DSN, "RELICFLIP_HISTORY_DSN")
	setStr(&cfg.History.Host, "RELICFLIP_HISTORY_HOST")
	setInt(&cfg.History.Port, "RELICFLIP_HISTORY_PORT")
	setStr(&cfg.History.Database, "RELICFLIP_HISTORY_DATABASE")
	setStr(&cfg.History.User, "RELICFLIP_HISTORY_USER")
	setStr(&cfg.History.Password, "RELICFLIP_HISTORY_PASSWORD")
	setStr(&cfg.History.SSLMode, "RELICFLIP_HISTORY_SSLMODE")
	setInt(&cfg.History.PoolMaxConns, "RELICFLIP_HISTORY_POOL_MAX_CONNS")
	setInt(&cfg.History.PoolMinConns, "RELICFLIP_HISTORY_POOL_MIN_CONNS")
	setBool(&cfg.History.RunMigrations, "RELICFLIP_HISTORY_RUN_MIGRATIONS")
	setInt(&cfg.History.QueueSize, "RELICFLIP_HISTORY_QUEUE_SIZE")
	setDuration(&cfg.History.Retention, "RELICFLIP_HISTORY_RETENTION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RELICFLIP_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RELICFLIP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RELICFLIP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RELICFLIP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RELICFLIP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RELICFLIP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RELICFLIP_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RELICFLIP_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RELICFLIP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RELICFLIP_S3_REGION")
	setStr(&cfg.S3.Bucket, "RELICFLIP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RELICFLIP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RELICFLIP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RELICFLIP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RELICFLIP_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveAfter, "RELICFLIP_S3_ARCHIVE_AFTER")
	setDuration(&cfg.S3.ArchiveInterval, "RELICFLIP_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RELICFLIP_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RELICFLIP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RELICFLIP_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RELICFLIP_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RELICFLIP_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RELICFLIP_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RELICFLIP_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "RELICFLIP_MODE")
	setStr(&cfg.LogLevel, "RELICFLIP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
