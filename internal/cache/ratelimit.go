package cache

import (
	"context"
	"sync"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// waitPollInterval is the polling cadence for LocalRateLimiter.Wait.
const waitPollInterval = 50 * time.Millisecond

// LocalRateLimiter is an in-process sliding-window rate limiter. It is the
// fallback used when Redis is not configured; the windowing semantics match
// the Redis-backed limiter so the fetch path behaves the same either way.
type LocalRateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	recent map[string][]time.Time
}

// NewLocalRateLimiter creates a limiter allowing limit requests per window
// for each key.
func NewLocalRateLimiter(limit int, window time.Duration) *LocalRateLimiter {
	return &LocalRateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		recent: make(map[string][]time.Time),
	}
}

// Allow reports whether a request for key is permitted under the given
// limit and window, counting it if so. The configured defaults are used by
// Wait; explicit params exist to satisfy domain.RateLimiter.
func (rl *LocalRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := rl.now()
	cutoff := now.Add(-window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	kept := rl.recent[key][:0]
	for _, ts := range rl.recent[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		rl.recent[key] = kept
		return false, nil
	}

	rl.recent[key] = append(kept, now)
	return true, nil
}

// Wait blocks until a request for key is allowed under the limiter's
// configured limit and window, or until ctx is cancelled.
func (rl *LocalRateLimiter) Wait(ctx context.Context, key string) error {
	for {
		allowed, err := rl.Allow(ctx, key, rl.limit, rl.window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

var _ domain.RateLimiter = (*LocalRateLimiter)(nil)
