package wfm

import (
	"math/rand"
	"testing"
	"time"
)

func TestBackoffSchedule_NonDecreasingAndCapped(t *testing.T) {
	sched := backoffSchedule{Base: time.Second, Cap: 60 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := sched.Delay(attempt)
		if d < prev {
			t.Errorf("Delay(%d) = %v < Delay(%d) = %v", attempt, d, attempt-1, prev)
		}
		if d > 60*time.Second {
			t.Errorf("Delay(%d) = %v exceeds cap", attempt, d)
		}
		prev = d
	}

	if got := sched.Delay(0); got != time.Second {
		t.Errorf("Delay(0) = %v, want 1s", got)
	}
	if got := sched.Delay(1); got != 2*time.Second {
		t.Errorf("Delay(1) = %v, want 2s", got)
	}
	if got := sched.Delay(10); got != 60*time.Second {
		t.Errorf("Delay(10) = %v, want cap 60s", got)
	}
}

func TestJitter_Bounds(t *testing.T) {
	d := 10 * time.Second
	for _, u := range []float64{0, 0.25, 0.5, 0.75, 1} {
		got := jitter(d, u)
		if got < 8*time.Second || got > 12*time.Second {
			t.Errorf("jitter(10s, %v) = %v outside [8s, 12s]", u, got)
		}
	}
	if jitter(d, 0.5) != d {
		t.Errorf("jitter(10s, 0.5) = %v, want 10s", jitter(d, 0.5))
	}
}

func TestRetryDelay_HonorsRetryAfter(t *testing.T) {
	sched := backoffSchedule{Base: time.Second, Cap: 60 * time.Second}
	rng := rand.New(rand.NewSource(1))

	// Retry-After above the schedule becomes the floor; jitter never pushes
	// the delay above Retry-After plus the jitter allowance.
	retryAfter := 30 * time.Second
	for i := 0; i < 100; i++ {
		d := retryDelay(sched, 0, retryAfter, rng)
		if d < time.Duration(float64(retryAfter)*(1-jitterFrac)) {
			t.Fatalf("retryDelay = %v fell below jittered Retry-After floor", d)
		}
		if d > time.Duration(float64(retryAfter)*(1+jitterFrac)) {
			t.Fatalf("retryDelay = %v exceeds Retry-After plus jitter", d)
		}
	}

	// Without a hint the schedule drives the delay.
	for i := 0; i < 100; i++ {
		d := retryDelay(sched, 2, 0, rng)
		want := 4 * time.Second
		if d < time.Duration(float64(want)*(1-jitterFrac)) ||
			d > time.Duration(float64(want)*(1+jitterFrac)) {
			t.Fatalf("retryDelay(attempt=2) = %v outside jitter band of %v", d, want)
		}
	}
}
