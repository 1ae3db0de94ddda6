package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davrix/relicflip/internal/domain"
)

// Store persists price snapshots to PostgreSQL. Appends go through a bounded
// queue drained by Run; when the queue is full rows are dropped and counted
// rather than blocking the caller. Only balanced-strategy rows are persisted:
// the three strategies read the same order books, so one series per part is
// enough for trends and the balanced percentiles sit between the extremes.
type Store struct {
	client *Client
	log    *slog.Logger

	queue    chan []domain.PriceSnapshot
	dropped  atomic.Uint64
	degraded atomic.Bool
}

// NewStore creates a Store with the given write-queue capacity. Run must be
// started for appends to reach the database.
func NewStore(client *Client, queueSize int, log *slog.Logger) *Store {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Store{
		client: client,
		log:    log,
		queue:  make(chan []domain.PriceSnapshot, queueSize),
	}
}

// Append converts the snapshot's balanced opportunities into history rows and
// enqueues them. It never blocks: if the writer has fallen behind, the batch
// is dropped and counted.
func (s *Store) Append(snapshot *domain.Snapshot) {
	rows := snapshotRows(snapshot)
	if len(rows) == 0 {
		return
	}

	select {
	case s.queue <- rows:
	default:
		s.dropped.Add(uint64(len(rows)))
		s.log.Warn("history write queue full, dropping batch",
			"rows", len(rows),
			"dropped_total", s.dropped.Load(),
		)
	}
}

// Dropped reports how many rows have been discarded due to queue overflow.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

// Run drains the write queue until ctx is cancelled. Insert failures flip the
// store into degraded mode; the next successful insert clears it.
func (s *Store) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rows := <-s.queue:
			if err := s.insertBatch(ctx, rows); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if s.degraded.CompareAndSwap(false, true) {
					s.log.Error("history storage degraded", "error", err)
				}
				continue
			}
			if s.degraded.CompareAndSwap(true, false) {
				s.log.Info("history storage recovered")
			}
		}
	}
}

func (s *Store) insertBatch(ctx context.Context, rows []domain.PriceSnapshot) error {
	const insert = `
		INSERT INTO price_snapshots (item_id, part_name, price, seller, platform, strategy, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insert, r.ItemID, r.PartName, r.Price, r.Seller, r.Platform, string(r.Strategy), r.Timestamp)
	}

	br := s.client.Pool().SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("history: insert batch: %w", err)
		}
	}
	return nil
}

// Query aggregates the last window of rows for one item and platform into
// per-part summaries. While the store is degraded it reports
// ErrHistoryUnavailable instead of serving a partial series.
func (s *Store) Query(ctx context.Context, itemID, platform string, window time.Duration) ([]domain.PartSummary, error) {
	if s.degraded.Load() {
		return nil, domain.ErrHistoryUnavailable
	}

	const query = `
		SELECT part_name, price, ts
		FROM price_snapshots
		WHERE item_id = $1 AND platform = $2 AND ts >= $3
		ORDER BY ts ASC`

	cutoff := time.Now().Add(-window)
	rows, err := s.client.Pool().Query(ctx, query, itemID, platform, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrHistoryUnavailable, itemID, err)
	}
	defer rows.Close()

	series := make(map[string][]float64)
	for rows.Next() {
		var (
			partName string
			price    float64
			ts       time.Time
		)
		if err := rows.Scan(&partName, &price, &ts); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", domain.ErrHistoryUnavailable, itemID, err)
		}
		series[partName] = append(series[partName], price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows %s: %v", domain.ErrHistoryUnavailable, itemID, err)
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	summaries := make([]domain.PartSummary, 0, len(names))
	for _, name := range names {
		summaries = append(summaries, Summarize(name, series[name]))
	}
	return summaries, nil
}

// TrimBefore deletes rows older than cutoff and returns how many went away.
func (s *Store) TrimBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.client.Pool().Exec(ctx,
		"DELETE FROM price_snapshots WHERE ts < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: trim before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// ListBefore returns every row older than cutoff, oldest first, for the
// cold-storage archiver.
func (s *Store) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.PriceSnapshot, error) {
	const query = `
		SELECT item_id, part_name, price, seller, platform, strategy, ts
		FROM price_snapshots
		WHERE ts < $1
		ORDER BY ts ASC`

	rows, err := s.client.Pool().Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("history: list before: %w", err)
	}
	defer rows.Close()

	var out []domain.PriceSnapshot
	for rows.Next() {
		var (
			r        domain.PriceSnapshot
			strategy string
		)
		if err := rows.Scan(&r.ItemID, &r.PartName, &r.Price, &r.Seller, &r.Platform, &strategy, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("history: list before scan: %w", err)
		}
		r.Strategy = domain.Strategy(strategy)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list before rows: %w", err)
	}
	return out, nil
}

// snapshotRows flattens a snapshot's balanced opportunities into history
// rows: one per part plus the set sentinel.
func snapshotRows(snapshot *domain.Snapshot) []domain.PriceSnapshot {
	if snapshot == nil {
		return nil
	}

	var rows []domain.PriceSnapshot
	for _, o := range snapshot.Opportunities {
		if o.Strategy != domain.StrategyBalanced {
			continue
		}
		for _, part := range o.Parts {
			rows = append(rows, domain.PriceSnapshot{
				ItemID:    o.ItemID,
				PartName:  part.Name,
				Price:     part.Price,
				Seller:    part.Seller,
				Platform:  o.Platform,
				Strategy:  o.Strategy,
				Timestamp: snapshot.ComputedAt,
			})
		}
		rows = append(rows, domain.PriceSnapshot{
			ItemID:    o.ItemID,
			PartName:  domain.SetPartName,
			Price:     o.SetPrice,
			Seller:    o.SetSeller,
			Platform:  o.Platform,
			Strategy:  o.Strategy,
			Timestamp: snapshot.ComputedAt,
		})
	}
	return rows
}

var (
	_ domain.HistoryStore        = (*Store)(nil)
	_ domain.HistoryArchiveStore = (*Store)(nil)
)
