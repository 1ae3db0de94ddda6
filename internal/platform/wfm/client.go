// Package wfm is the rate-limited HTTP client for the Warframe.market API.
// It owns retry/backoff and 429 handling; callers treat a returned error as
// "no data this cycle" for the affected item, never as fatal.
package wfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// rateKey is the rate-limiter bucket shared by all fetches against the
// upstream API.
const rateKey = "wfm"

// Config holds the client parameters.
type Config struct {
	BaseURL        string
	UserAgent      string
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// Client fetches order books from the upstream marketplace. It is safe for
// concurrent use across items.
type Client struct {
	baseURL     string
	userAgent   string
	maxAttempts int
	sched       backoffSchedule
	http        *http.Client
	limiter     domain.RateLimiter // nil disables pacing
	logger      *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient creates a marketplace client. limiter may be nil, in which case
// requests are paced only by the backoff schedule.
func NewClient(cfg Config, limiter domain.RateLimiter, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		userAgent:   cfg.UserAgent,
		maxAttempts: attempts,
		sched:       backoffSchedule{Base: cfg.BackoffBase, Cap: cfg.BackoffCap},
		http:        &http.Client{Timeout: timeout},
		limiter:     limiter,
		logger:      logger.With(slog.String("component", "wfm")),
	}
}

// FetchOrders returns the current visible orders for one item slug. It
// retries transient failures (network errors, 5xx, malformed payloads) with
// exponential backoff and honors Retry-After on 429 responses. After
// exhausting the attempt budget it returns ErrRetriesExhausted.
func (c *Client) FetchOrders(ctx context.Context, slug string) ([]domain.Order, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryDelay(c.sched, attempt-1, retryAfterOf(lastErr), c.rand())
			c.logger.DebugContext(ctx, "retrying fetch",
				slog.String("slug", slug),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, rateKey); err != nil {
				return nil, fmt.Errorf("wfm: rate limit wait: %w", err)
			}
		}

		orders, err := c.fetchOnce(ctx, slug)
		if err == nil {
			return orders, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}

		lastErr = err
		c.logger.WarnContext(ctx, "fetch attempt failed",
			slog.String("slug", slug),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}

	return nil, fmt.Errorf("wfm: fetch %s: %w: %v", slug, domain.ErrRetriesExhausted, lastErr)
}

// fetchOnce performs a single request/decode round trip.
func (c *Client) fetchOnce(ctx context.Context, slug string) ([]domain.Order, error) {
	endpoint := fmt.Sprintf("%s/items/%s/orders", c.baseURL, url.PathEscape(slug))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("wfm: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transientError{cause: fmt.Errorf("wfm: request %s: %w", slug, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}

	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &transientError{cause: fmt.Errorf("wfm: %s: upstream status %d", slug, resp.StatusCode)}

	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("wfm: %s: unexpected status %d", slug, resp.StatusCode)
	}

	var decoded ordersResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &transientError{cause: fmt.Errorf("wfm: %s: %w: %v", slug, domain.ErrMalformedPayload, err)}
	}

	orders := make([]domain.Order, 0, len(decoded.Payload.Orders))
	for _, raw := range decoded.Payload.Orders {
		if o, ok := raw.toDomain(); ok {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// rand returns the client's jitter source, lazily seeded.
func (c *Client) rand() *rand.Rand {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c.rng
}

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// transientError marks failures worth retrying: network errors, 5xx, and
// malformed payloads.
type transientError struct{ cause error }

func (e *transientError) Error() string { return e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }

// rateLimitError is a 429 with an optional server-provided retry hint.
type rateLimitError struct{ retryAfter time.Duration }

func (e *rateLimitError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("wfm: rate limited, retry after %s", e.retryAfter)
	}
	return "wfm: rate limited"
}

func (e *rateLimitError) Unwrap() error { return domain.ErrRateLimited }

func retryable(err error) bool {
	switch err.(type) {
	case *transientError, *rateLimitError:
		return true
	}
	return false
}

// retryAfterOf extracts the Retry-After hint from a rate-limit error, or 0.
func retryAfterOf(err error) time.Duration {
	if rl, ok := err.(*rateLimitError); ok {
		return rl.retryAfter
	}
	return 0
}

// parseRetryAfter parses a Retry-After header value in seconds. HTTP-date
// values are ignored; the backoff schedule covers that case.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// sleep blocks for d, returning early with the context error when ctx is
// cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
