// Package scheduler drives the refresh cycle: it fetches order books for
// every enabled item, computes opportunities for every strategy, publishes
// one atomic snapshot, and fans the result out to history, subscribers,
// notifiers, and the optional Redis mirror.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davrix/relicflip/internal/domain"
	"github.com/davrix/relicflip/internal/pricing"
)

// mirrorTimeout bounds the Redis mirror write so a slow mirror cannot stall
// the cycle loop.
const mirrorTimeout = 5 * time.Second

// OrderFetcher retrieves the current order book for one upstream slug.
type OrderFetcher interface {
	FetchOrders(ctx context.Context, slug string) ([]domain.Order, error)
}

// Config holds the scheduler's cycle parameters.
type Config struct {
	Items           []domain.TrackedItem
	Platform        string
	FeePct          float64
	RefreshInterval time.Duration
	CycleTimeout    time.Duration
	Workers         int
	AlertMinProfit  float64
	AlertMinMargin  float64
}

// Scheduler owns the cycle loop and is the snapshot cache's single writer.
type Scheduler struct {
	cfg     Config
	fetcher OrderFetcher
	cache   domain.SnapshotPublisher
	log     *slog.Logger

	history domain.HistoryStore
	mirror  domain.SnapshotMirror
	sinks   []domain.SnapshotSink
	alerts  []domain.AlertSink

	cycle atomic.Uint64
	now   func() time.Time
}

// New creates a Scheduler. Fan-out targets are attached separately; a
// scheduler with none still publishes snapshots to the cache.
func New(cfg Config, fetcher OrderFetcher, cache domain.SnapshotPublisher, log *slog.Logger) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scheduler{
		cfg:     cfg,
		fetcher: fetcher,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// SetHistory attaches the history store; each published snapshot is appended.
func (s *Scheduler) SetHistory(h domain.HistoryStore) { s.history = h }

// SetMirror attaches the out-of-process snapshot mirror.
func (s *Scheduler) SetMirror(m domain.SnapshotMirror) { s.mirror = m }

// AddSink attaches a snapshot fan-out target.
func (s *Scheduler) AddSink(sink domain.SnapshotSink) { s.sinks = append(s.sinks, sink) }

// AddAlertSink attaches a threshold-alert target.
func (s *Scheduler) AddAlertSink(sink domain.AlertSink) { s.alerts = append(s.alerts, sink) }

// Run executes cycles at the configured interval until ctx is cancelled. A
// failed cycle is logged and the loop continues; only cancellation ends it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler starting",
		slog.Duration("refresh_interval", s.cfg.RefreshInterval),
		slog.Int("workers", s.cfg.Workers),
		slog.Int("items", len(s.cfg.Items)),
	)

	// Run immediately on start.
	if err := s.RunCycle(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Error("cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error("cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

type itemResult struct {
	item   domain.TrackedItem
	orders map[string][]domain.Order
}

// RunCycle performs one full refresh: fetch, compute, publish, fan out.
// Items that fail to fetch are skipped; the snapshot is published with
// whatever completed inside the cycle timeout.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	cycleID := s.cycle.Add(1)
	started := s.now()

	cctx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	results := make(chan itemResult)
	opportunities := make(map[domain.Key]domain.Opportunity)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range results {
			for _, strat := range domain.Strategies {
				o, ok := pricing.ComputeOpportunity(
					res.item, res.orders, strat.Definition(),
					s.cfg.Platform, s.cfg.FeePct, started,
				)
				if ok {
					opportunities[o.Key()] = o
				}
			}
		}
	}()

	g := &errgroup.Group{}
	g.SetLimit(s.cfg.Workers)

	fetched := 0
	for _, item := range s.cfg.Items {
		if !item.Enabled {
			continue
		}
		fetched++
		g.Go(func() error {
			orders, err := s.fetchItem(cctx, item)
			if err != nil {
				s.log.Warn("item fetch failed, skipping this cycle",
					slog.String("item", item.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			select {
			case results <- itemResult{item: item, orders: orders}:
			case <-cctx.Done():
			}
			return nil
		})
	}

	_ = g.Wait()
	close(results)
	<-done

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := &domain.Snapshot{
		CycleID:       cycleID,
		ComputedAt:    started,
		Opportunities: opportunities,
	}

	prev := s.cache.Current()
	s.cache.Publish(snapshot)
	s.fanOut(ctx, prev, snapshot)

	s.log.Info("cycle complete",
		slog.Uint64("cycle", cycleID),
		slog.Int("items", fetched),
		slog.Int("opportunities", len(opportunities)),
		slog.Duration("elapsed", s.now().Sub(started)),
	)
	return nil
}

// fetchItem retrieves the order book for every slug of one item. Slugs are
// fetched one at a time so a single item never bursts the upstream budget.
func (s *Scheduler) fetchItem(ctx context.Context, item domain.TrackedItem) (map[string][]domain.Order, error) {
	orders := make(map[string][]domain.Order, len(item.Parts)+1)
	for _, slug := range item.Slugs() {
		list, err := s.fetcher.FetchOrders(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", slug, err)
		}
		orders[slug] = list
	}
	return orders, nil
}

func (s *Scheduler) fanOut(ctx context.Context, prev, snapshot *domain.Snapshot) {
	if s.history != nil {
		s.history.Append(snapshot)
	}
	for _, sink := range s.sinks {
		sink.Broadcast(snapshot)
	}
	s.emitAlerts(prev, snapshot)

	if s.mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		defer cancel()
		if err := s.mirror.Mirror(mctx, snapshot); err != nil {
			s.log.Warn("snapshot mirror failed", slog.String("error", err.Error()))
		}
	}
}

// emitAlerts diffs the new snapshot against the previous one and alerts on
// opportunities that newly crossed a threshold this cycle. An opportunity
// already over the line last cycle stays quiet.
func (s *Scheduler) emitAlerts(prev, snapshot *domain.Snapshot) {
	if len(s.alerts) == 0 {
		return
	}
	if s.cfg.AlertMinProfit <= 0 && s.cfg.AlertMinMargin <= 0 {
		return
	}

	for key, o := range snapshot.Opportunities {
		reason, ok := s.newlyCrossed(prev, key, o)
		if !ok {
			continue
		}
		alert := domain.Alert{Opportunity: o, Reason: reason}
		for _, sink := range s.alerts {
			sink.Alert(alert)
		}
	}
}

func (s *Scheduler) newlyCrossed(prev *domain.Snapshot, key domain.Key, o domain.Opportunity) (string, bool) {
	var (
		prevOpp domain.Opportunity
		had     bool
	)
	if prev != nil {
		prevOpp, had = prev.Lookup(key)
	}

	if s.cfg.AlertMinProfit > 0 && o.Profit >= s.cfg.AlertMinProfit {
		if !had || prevOpp.Profit < s.cfg.AlertMinProfit {
			return domain.AlertReasonProfit, true
		}
	}
	if s.cfg.AlertMinMargin > 0 && o.Margin >= s.cfg.AlertMinMargin {
		if !had || prevOpp.Margin < s.cfg.AlertMinMargin {
			return domain.AlertReasonMargin, true
		}
	}
	return "", false
}
