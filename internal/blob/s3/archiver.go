package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// HistoryTrimmer deletes aged rows once they have been archived.
type HistoryTrimmer interface {
	TrimBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ObjectPutter is the narrow upload surface the archiver needs; *Writer
// satisfies it.
type ObjectPutter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

// multipartAbove is the payload size past which uploads switch to the
// multipart path. Normal passes stay well under it; a backlog pass (first
// run against an old table) can exceed it.
const multipartAbove = 8 << 20

// archivePartSize is the multipart chunk size for backlog uploads.
const archivePartSize int64 = 8 << 20

// Archiver exports history rows older than the retention horizon as JSONL to
// object storage, then trims them from the primary store. The trim only runs
// after a successful upload so rows are never lost mid-flight.
type Archiver struct {
	store     domain.HistoryArchiveStore
	trimmer   HistoryTrimmer
	writer    ObjectPutter
	retention time.Duration
	logger    *slog.Logger

	multipartAbove int
}

// NewArchiver creates an Archiver. retention is how far back rows stay in
// the primary store.
func NewArchiver(
	store domain.HistoryArchiveStore,
	trimmer HistoryTrimmer,
	writer ObjectPutter,
	retention time.Duration,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		store:          store,
		trimmer:        trimmer,
		writer:         writer,
		retention:      retention,
		logger:         logger.With(slog.String("component", "archiver")),
		multipartAbove: multipartAbove,
	}
}

// archiveRow is the JSONL line format for exported history rows.
type archiveRow struct {
	ItemID    string    `json:"item_id"`
	PartName  string    `json:"part_name"`
	Price     float64   `json:"price"`
	Seller    string    `json:"seller,omitempty"`
	Platform  string    `json:"platform"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
}

// Run executes a single archive pass: list aged rows, upload one JSONL
// object, trim the primary store.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-a.retention)

	rows, err := a.store.ListBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("listing history before %v: %w", cutoff, err)
	}
	if len(rows) == 0 {
		a.logger.Info("nothing to archive", slog.Time("cutoff", cutoff))
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range rows {
		line := archiveRow{
			ItemID:    r.ItemID,
			PartName:  r.PartName,
			Price:     r.Price,
			Seller:    r.Seller,
			Platform:  r.Platform,
			Strategy:  string(r.Strategy),
			Timestamp: r.Timestamp.UTC(),
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("encoding archive row: %w", err)
		}
	}

	key := archiveKey(cutoff)
	const contentType = "application/x-ndjson"
	if buf.Len() > a.multipartAbove {
		err = a.writer.PutMultipart(ctx, key, &buf, contentType, archivePartSize)
	} else {
		err = a.writer.Put(ctx, key, &buf, contentType)
	}
	if err != nil {
		return fmt.Errorf("uploading archive %s: %w", key, err)
	}

	trimmed, err := a.trimmer.TrimBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("trimming history before %v: %w", cutoff, err)
	}

	a.logger.Info("archive pass complete",
		slog.String("key", key),
		slog.Int("rows_archived", len(rows)),
		slog.Int64("rows_trimmed", trimmed),
	)
	return nil
}

// RunLoop runs archive passes on a fixed interval until ctx is cancelled.
// A failed pass is retried on the next tick; the rows stay put until then.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	a.logger.Info("archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archiveKey builds the object key for one pass, partitioned by day.
func archiveKey(cutoff time.Time) string {
	return fmt.Sprintf("history/%s/price_snapshots_%s.jsonl",
		cutoff.Format("2006/01/02"),
		cutoff.Format("20060102T150405Z"),
	)
}
