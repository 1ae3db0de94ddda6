package domain

import (
	"context"
	"time"
)

// SnapshotReader is the read side of the opportunity cache. Reads are
// lock-free: the returned snapshot is immutable and complete.
type SnapshotReader interface {
	// Current returns the latest published snapshot, or nil before the
	// first cycle completes.
	Current() *Snapshot
}

// SnapshotPublisher is the single-writer side of the opportunity cache,
// owned by the scheduler.
type SnapshotPublisher interface {
	SnapshotReader
	// Publish atomically replaces the current snapshot. Snapshots must be
	// published in strictly increasing cycle-id order.
	Publish(s *Snapshot)
}

// SnapshotSink receives each published snapshot for fan-out. Implementations
// must not block the publish path.
type SnapshotSink interface {
	Broadcast(s *Snapshot)
}

// SnapshotMirror pushes the latest snapshot to an out-of-process cache so
// external read-only consumers can see current opportunities without
// touching this process.
type SnapshotMirror interface {
	Mirror(ctx context.Context, s *Snapshot) error
}

// RateLimiter paces outbound requests to the upstream marketplace.
type RateLimiter interface {
	// Allow reports whether one request under key is currently permitted,
	// counting it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request under key is permitted or ctx is done.
	Wait(ctx context.Context, key string) error
}
