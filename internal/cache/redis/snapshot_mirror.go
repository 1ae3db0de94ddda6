package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/davrix/relicflip/internal/domain"
	"github.com/redis/go-redis/v9"
)

// mirrorTTL bounds how long mirrored entries outlive the process. A few
// refresh intervals is enough; stale entries expire on their own.
const mirrorTTL = 10 * time.Minute

// SnapshotMirror pushes each published snapshot into Redis so out-of-process
// consumers (dashboards, query services) can read the latest opportunities
// without talking to this process. Each opportunity is stored as JSON at
// "opp:{item}:{platform}:{strategy}"; the published cycle id lives at
// "opp:cycle".
type SnapshotMirror struct {
	rdb *redis.Client
}

// NewSnapshotMirror creates a SnapshotMirror backed by the given Client.
func NewSnapshotMirror(c *Client) *SnapshotMirror {
	return &SnapshotMirror{rdb: c.Underlying()}
}

func oppKey(k domain.Key) string {
	return fmt.Sprintf("opp:%s:%s:%s", k.ItemID, k.Platform, k.Strategy)
}

// Mirror writes every opportunity in the snapshot plus the cycle marker in
// one pipeline. The cycle marker is written last so a consumer that reads
// the marker first never sees entries from a newer cycle than advertised.
func (m *SnapshotMirror) Mirror(ctx context.Context, s *domain.Snapshot) error {
	pipe := m.rdb.Pipeline()

	for k, o := range s.Opportunities {
		payload, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("redis: marshal opportunity %v: %w", k, err)
		}
		pipe.Set(ctx, oppKey(k), payload, mirrorTTL)
	}
	pipe.Set(ctx, "opp:cycle", strconv.FormatUint(s.CycleID, 10), mirrorTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: mirror snapshot cycle %d: %w", s.CycleID, err)
	}
	return nil
}

var _ domain.SnapshotMirror = (*SnapshotMirror)(nil)
