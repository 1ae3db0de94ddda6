// Package cache holds the in-process opportunity cache: the latest computed
// snapshot per cycle, published by the scheduler and read lock-free by the
// subscriber hub and query handlers.
package cache

import (
	"sync/atomic"

	"github.com/davrix/relicflip/internal/domain"
)

// SnapshotCache stores the current opportunity snapshot behind an atomic
// pointer. Single writer (the scheduler), any number of readers; readers
// never take a lock and never observe a partially updated snapshot.
type SnapshotCache struct {
	current atomic.Pointer[domain.Snapshot]
}

// NewSnapshotCache returns an empty cache. Current returns nil until the
// first Publish.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{}
}

// Current returns the latest published snapshot, or nil before the first
// cycle completes. The snapshot is immutable; callers must not modify it.
func (c *SnapshotCache) Current() *domain.Snapshot {
	return c.current.Load()
}

// Publish atomically replaces the current snapshot. Publishing an older
// cycle than the current one is ignored, so a straggling cycle can never
// roll the cache backwards.
func (c *SnapshotCache) Publish(s *domain.Snapshot) {
	for {
		prev := c.current.Load()
		if prev != nil && s.CycleID <= prev.CycleID {
			return
		}
		if c.current.CompareAndSwap(prev, s) {
			return
		}
	}
}

var (
	_ domain.SnapshotReader    = (*SnapshotCache)(nil)
	_ domain.SnapshotPublisher = (*SnapshotCache)(nil)
)
