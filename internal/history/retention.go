package history

import (
	"context"
	"log/slog"
	"time"
)

// RetentionInterval is how often the retention pass checks for aged rows.
// Trimming is cheap relative to the retention window (days), so a fixed
// hourly cadence is enough.
const RetentionInterval = time.Hour

// trimmer is the slice of the store the retention pass needs.
type trimmer interface {
	TrimBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunRetention deletes rows older than retention on a fixed cadence until
// ctx is cancelled. The first pass runs immediately so a restart never
// extends the window. Failures are logged and retried on the next tick.
//
// When the archiver is enabled it owns trimming instead (upload first, trim
// after), so this loop must not run alongside it.
func RunRetention(ctx context.Context, store trimmer, retention, interval time.Duration, log *slog.Logger) error {
	trim := func() {
		cutoff := time.Now().UTC().Add(-retention)
		trimmed, err := store.TrimBefore(ctx, cutoff)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("history retention trim failed", "error", err)
			}
			return
		}
		if trimmed > 0 {
			log.Info("history retention trim",
				slog.Int64("rows", trimmed),
				slog.Time("cutoff", cutoff),
			)
		}
	}

	trim()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			trim()
		}
	}
}
