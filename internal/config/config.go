// Package config defines the top-level configuration for relicflip and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RELICFLIP_* environment
// variables.
type Config struct {
	Market    MarketConfig    `toml:"market"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	History   HistoryConfig   `toml:"history"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Items     []ItemConfig    `toml:"items"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// MarketConfig holds upstream marketplace API parameters, including the
// retry/backoff schedule and request pacing.
type MarketConfig struct {
	BaseURL        string   `toml:"base_url"`
	Platform       string   `toml:"platform"`
	UserAgent      string   `toml:"user_agent"`
	RequestTimeout duration `toml:"request_timeout"`
	MaxAttempts    int      `toml:"max_attempts"`
	BackoffBase    duration `toml:"backoff_base"`
	BackoffCap     duration `toml:"backoff_cap"`
	RatePerWindow  int      `toml:"rate_per_window"`
	RateWindow     duration `toml:"rate_window"`
}

// SchedulerConfig holds refresh-cycle parameters.
type SchedulerConfig struct {
	RefreshInterval duration `toml:"refresh_interval"`
	CycleTimeout    duration `toml:"cycle_timeout"`
	Workers         int      `toml:"workers"`
	FeePct          float64  `toml:"fee_pct"`
	AlertMinProfit  float64  `toml:"alert_min_profit"`
	AlertMinMargin  float64  `toml:"alert_min_margin"`
}

// HistoryConfig holds PostgreSQL connection parameters for the price
// history time series.
type HistoryConfig struct {
	Enabled       bool     `toml:"enabled"`
	DSN           string   `toml:"dsn"`
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`
	Database      string   `toml:"database"`
	User          string   `toml:"user"`
	Password      string   `toml:"password"`
	SSLMode       string   `toml:"ssl_mode"`
	PoolMaxConns  int      `toml:"pool_max_conns"`
	PoolMinConns  int      `toml:"pool_min_conns"`
	RunMigrations bool     `toml:"run_migrations"`
	QueueSize     int      `toml:"queue_size"`
	Retention     duration `toml:"retention"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for history
// archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveAfter    duration `toml:"archive_after"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP/WebSocket server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ItemConfig is one tracked-item catalog entry in TOML form.
type ItemConfig struct {
	ID       string   `toml:"id"`
	Name     string   `toml:"name"`
	Parts    []string `toml:"parts"`
	Category string   `toml:"category"`
	Enabled  bool     `toml:"enabled"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "45s", "2m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "45s" or "2m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// framePart names shared by every prime warframe set.
var frameParts = []string{"Blueprint", "Neuroptics", "Chassis", "Systems"}

// Defaults returns a Config populated with reasonable default values,
// including the curated default catalog. The catalog is deliberately small
// (~1 request/second budget against the upstream rate limit).
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			BaseURL:        "https://api.warframe.market/v1",
			Platform:       "pc",
			UserAgent:      "relicflip/1.0",
			RequestTimeout: duration{30 * time.Second},
			MaxAttempts:    7,
			BackoffBase:    duration{time.Second},
			BackoffCap:     duration{60 * time.Second},
			RatePerWindow:  2,
			RateWindow:     duration{time.Second},
		},
		Scheduler: SchedulerConfig{
			RefreshInterval: duration{45 * time.Second},
			CycleTimeout:    duration{5 * time.Minute},
			Workers:         4,
			FeePct:          0.0,
			AlertMinProfit:  50.0,
			AlertMinMargin:  0.0,
		},
		History: HistoryConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "relicflip",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
			QueueSize:     256,
			Retention:     duration{7 * 24 * time.Hour},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "relicflip-data",
			ForcePathStyle:  true,
			ArchiveAfter:    duration{30 * 24 * time.Hour},
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_alert", "error"},
		},
		Items:    defaultCatalog(),
		Mode:     "serve",
		LogLevel: "info",
	}
}

// defaultCatalog returns the built-in tracked-item list: popular, liquid
// prime sets. Operators can replace it entirely with [[items]] blocks.
func defaultCatalog() []ItemConfig {
	frames := []struct{ id, name string }{
		{"mesa_prime", "Mesa Prime"},
		{"volt_prime", "Volt Prime"},
		{"rhino_prime", "Rhino Prime"},
		{"vauban_prime", "Vauban Prime"},
		{"nova_prime", "Nova Prime"},
		{"nekros_prime", "Nekros Prime"},
		{"wukong_prime", "Wukong Prime"},
		{"ash_prime", "Ash Prime"},
		{"saryn_prime", "Saryn Prime"},
		{"loki_prime", "Loki Prime"},
	}

	items := make([]ItemConfig, 0, len(frames)+2)
	for _, f := range frames {
		items = append(items, ItemConfig{
			ID:       f.id,
			Name:     f.name,
			Parts:    frameParts,
			Category: string(domain.CategoryWarframe),
			Enabled:  true,
		})
	}

	items = append(items,
		ItemConfig{
			ID:       "soma_prime",
			Name:     "Soma Prime",
			Parts:    []string{"Blueprint", "Barrel", "Receiver", "Stock"},
			Category: string(domain.CategoryWeapon),
			Enabled:  true,
		},
		ItemConfig{
			ID:       "akstiletto_prime",
			Name:     "Akstiletto Prime",
			Parts:    []string{"Blueprint", "Barrel", "Receiver", "Link"},
			Category: string(domain.CategoryWeapon),
			Enabled:  true,
		},
	)
	return items
}

// Catalog converts the configured item entries into immutable domain
// catalog entries.
func (c *Config) Catalog() []domain.TrackedItem {
	items := make([]domain.TrackedItem, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, domain.TrackedItem{
			ID:       it.ID,
			Name:     it.Name,
			Parts:    append([]string(nil), it.Parts...),
			Category: domain.ItemCategory(it.Category),
			Enabled:  it.Enabled,
		})
	}
	return items
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"serve": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPlatforms enumerates the upstream marketplace platforms.
var validPlatforms = map[string]bool{
	"pc":     true,
	"ps4":    true,
	"xbox":   true,
	"switch": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Market
	if c.Market.BaseURL == "" {
		errs = append(errs, "market: base_url must not be empty")
	}
	if !validPlatforms[c.Market.Platform] {
		errs = append(errs, fmt.Sprintf("market: unknown platform %q (valid: pc, ps4, xbox, switch)", c.Market.Platform))
	}
	if c.Market.MaxAttempts < 1 {
		errs = append(errs, "market: max_attempts must be >= 1")
	}
	if c.Market.BackoffBase.Duration <= 0 {
		errs = append(errs, "market: backoff_base must be positive")
	}
	if c.Market.BackoffCap.Duration < c.Market.BackoffBase.Duration {
		errs = append(errs, "market: backoff_cap must be >= backoff_base")
	}
	if c.Market.RatePerWindow < 1 {
		errs = append(errs, "market: rate_per_window must be >= 1")
	}
	if c.Market.RateWindow.Duration <= 0 {
		errs = append(errs, "market: rate_window must be positive")
	}

	// Scheduler
	if c.Scheduler.RefreshInterval.Duration <= 0 {
		errs = append(errs, "scheduler: refresh_interval must be positive")
	}
	if c.Scheduler.CycleTimeout.Duration <= 0 {
		errs = append(errs, "scheduler: cycle_timeout must be positive")
	}
	if c.Scheduler.Workers < 1 {
		errs = append(errs, "scheduler: workers must be >= 1")
	}
	if c.Scheduler.FeePct < 0 || c.Scheduler.FeePct >= 1 {
		errs = append(errs, fmt.Sprintf("scheduler: fee_pct must be in [0,1), got %v", c.Scheduler.FeePct))
	}

	// History
	if c.History.Enabled {
		if strings.TrimSpace(c.History.DSN) == "" {
			if c.History.Host == "" {
				errs = append(errs, "history: host must not be empty (or set history.dsn)")
			}
			if c.History.Port <= 0 || c.History.Port > 65535 {
				errs = append(errs, fmt.Sprintf("history: port must be 1-65535, got %d", c.History.Port))
			}
			if c.History.Database == "" {
				errs = append(errs, "history: database must not be empty")
			}
		}
		if c.History.PoolMaxConns < 1 {
			errs = append(errs, "history: pool_max_conns must be >= 1")
		}
		if c.History.PoolMinConns < 0 {
			errs = append(errs, "history: pool_min_conns must be >= 0")
		}
		if c.History.PoolMinConns > c.History.PoolMaxConns {
			errs = append(errs, "history: pool_min_conns must not exceed pool_max_conns")
		}
		if c.History.QueueSize < 1 {
			errs = append(errs, "history: queue_size must be >= 1")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "s3: archive_interval must be positive")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Catalog
	if len(c.Items) == 0 {
		errs = append(errs, "items: catalog must not be empty")
	}
	seen := make(map[string]bool, len(c.Items))
	for i, it := range c.Items {
		if it.ID == "" {
			errs = append(errs, fmt.Sprintf("items[%d]: id must not be empty", i))
			continue
		}
		if seen[it.ID] {
			errs = append(errs, fmt.Sprintf("items[%d]: duplicate id %q", i, it.ID))
		}
		seen[it.ID] = true
		if it.Name == "" {
			errs = append(errs, fmt.Sprintf("items[%d] %s: name must not be empty", i, it.ID))
		}
		if len(it.Parts) == 0 {
			errs = append(errs, fmt.Sprintf("items[%d] %s: parts must not be empty", i, it.ID))
		}
		switch domain.ItemCategory(it.Category) {
		case domain.CategoryWarframe, domain.CategoryWeapon:
		default:
			errs = append(errs, fmt.Sprintf("items[%d] %s: unknown category %q", i, it.ID, it.Category))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
