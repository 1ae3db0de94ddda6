package wfm

import (
	"math/rand"
	"time"
)

// jitterFrac is the relative jitter applied to every retry delay: the final
// delay lands in [d*(1-jitterFrac), d*(1+jitterFrac)].
const jitterFrac = 0.2

// backoffSchedule computes retry delays: exponential from Base, doubling per
// attempt, capped at Cap.
type backoffSchedule struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns the un-jittered delay for a zero-based attempt number. The
// sequence is non-decreasing and never exceeds Cap.
func (b backoffSchedule) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// jitter spreads d by ±jitterFrac using the unit-interval sample u, so
// concurrent fetchers failing together do not retry in lockstep.
func jitter(d time.Duration, u float64) time.Duration {
	f := 1 - jitterFrac + 2*jitterFrac*u
	return time.Duration(float64(d) * f)
}

// retryDelay combines the schedule with an optional server-provided
// Retry-After hint: the hint forms a floor for the delay, and jitter is
// applied last.
func retryDelay(sched backoffSchedule, attempt int, retryAfter time.Duration, rng *rand.Rand) time.Duration {
	d := sched.Delay(attempt)
	if retryAfter > d {
		d = retryAfter
	}
	return jitter(d, rng.Float64())
}
