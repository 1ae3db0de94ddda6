package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/davrix/relicflip/internal/cache"
	"github.com/davrix/relicflip/internal/domain"
)

type fakeFetcher struct {
	mu     sync.Mutex
	orders map[string][]domain.Order
	fail   map[string]error
	calls  []string
}

func (f *fakeFetcher) FetchOrders(_ context.Context, slug string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, slug)
	if err, ok := f.fail[slug]; ok {
		return nil, err
	}
	return f.orders[slug], nil
}

func (f *fakeFetcher) set(slug string, orders []domain.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orders == nil {
		f.orders = make(map[string][]domain.Order)
	}
	f.orders[slug] = orders
}

type recordingSink struct {
	mu        sync.Mutex
	snapshots []*domain.Snapshot
	alerts    []domain.Alert
}

func (r *recordingSink) Broadcast(s *domain.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recordingSink) Alert(a domain.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func sellOrders(prices ...int) []domain.Order {
	orders := make([]domain.Order, 0, len(prices))
	for i, p := range prices {
		orders = append(orders, domain.Order{
			Side:     domain.SideSell,
			Platform: "pc",
			Visible:  true,
			Price:    p,
			Presence: domain.PresenceInGame,
			Seller:   string(rune('a' + i)),
		})
	}
	return orders
}

func buyOrders(prices ...int) []domain.Order {
	orders := make([]domain.Order, 0, len(prices))
	for i, p := range prices {
		orders = append(orders, domain.Order{
			Side:     domain.SideBuy,
			Platform: "pc",
			Visible:  true,
			Price:    p,
			Presence: domain.PresenceInGame,
			Seller:   string(rune('m' + i)),
		})
	}
	return orders
}

func testItem() domain.TrackedItem {
	return domain.TrackedItem{
		ID:       "mesa_prime",
		Name:     "Mesa Prime",
		Parts:    []string{"Chassis"},
		Category: domain.CategoryWarframe,
		Enabled:  true,
	}
}

func testScheduler(cfg Config, fetcher OrderFetcher) (*Scheduler, *cache.SnapshotCache) {
	if cfg.Platform == "" {
		cfg.Platform = "pc"
	}
	if cfg.CycleTimeout == 0 {
		cfg.CycleTimeout = time.Second
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	snapshots := cache.NewSnapshotCache()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, fetcher, snapshots, log), snapshots
}

func TestRunCyclePublishesSnapshot(t *testing.T) {
	item := testItem()
	fetcher := &fakeFetcher{}
	fetcher.set("mesa_prime_chassis", sellOrders(10, 12, 15))
	// Sell orders price balanced/aggressive; buy orders price conservative.
	fetcher.set("mesa_prime_set", append(sellOrders(50, 55, 60), buyOrders(45, 48)...))

	sched, snapshots := testScheduler(Config{Items: []domain.TrackedItem{item}}, fetcher)

	if err := sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	snap := snapshots.Current()
	if snap == nil {
		t.Fatal("no snapshot published")
	}
	if snap.CycleID != 1 {
		t.Errorf("cycle id = %d, want 1", snap.CycleID)
	}
	if len(snap.Opportunities) != len(domain.Strategies) {
		t.Fatalf("got %d opportunities, want one per strategy (%d)",
			len(snap.Opportunities), len(domain.Strategies))
	}

	key := domain.Key{ItemID: "mesa_prime", Platform: "pc", Strategy: domain.StrategyBalanced}
	o, ok := snap.Lookup(key)
	if !ok {
		t.Fatal("balanced opportunity missing")
	}
	// balanced: parts p35 of [10,12,15] = 11.4, set p50 of [50,55,60] = 55.
	if o.PartsCost != 11.4 || o.SetPrice != 55 {
		t.Errorf("parts_cost/set_price = %v/%v, want 11.4/55", o.PartsCost, o.SetPrice)
	}
	if o.Profit != 55-11.4 {
		t.Errorf("profit = %v, want %v", o.Profit, 55-11.4)
	}
}

func TestRunCycleSkipsFailedItem(t *testing.T) {
	good := testItem()
	bad := domain.TrackedItem{
		ID: "nova_prime", Name: "Nova Prime",
		Parts: []string{"Chassis"}, Category: domain.CategoryWarframe, Enabled: true,
	}

	fetcher := &fakeFetcher{fail: map[string]error{
		"nova_prime_chassis": errors.New("upstream down"),
	}}
	fetcher.set("mesa_prime_chassis", sellOrders(10))
	fetcher.set("mesa_prime_set", sellOrders(50))

	sched, snapshots := testScheduler(Config{Items: []domain.TrackedItem{good, bad}}, fetcher)

	if err := sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	snap := snapshots.Current()
	if snap == nil {
		t.Fatal("no snapshot published")
	}
	for key := range snap.Opportunities {
		if key.ItemID == "nova_prime" {
			t.Errorf("failed item present in snapshot: %v", key)
		}
	}
	if _, ok := snap.Lookup(domain.Key{ItemID: "mesa_prime", Platform: "pc", Strategy: domain.StrategyBalanced}); !ok {
		t.Error("healthy item missing from snapshot")
	}
}

func TestRunCycleSkipsDisabledItems(t *testing.T) {
	item := testItem()
	item.Enabled = false

	fetcher := &fakeFetcher{}
	sched, snapshots := testScheduler(Config{Items: []domain.TrackedItem{item}}, fetcher)

	if err := sched.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("disabled item was fetched: %v", fetcher.calls)
	}
	if snap := snapshots.Current(); snap == nil || len(snap.Opportunities) != 0 {
		t.Errorf("want empty snapshot, got %+v", snap)
	}
}

func TestAlertsFireOnlyOnNewCrossings(t *testing.T) {
	item := testItem()
	fetcher := &fakeFetcher{}
	// Cycle 1: profit 50 - 10 = 40, below the threshold.
	fetcher.set("mesa_prime_chassis", sellOrders(10))
	fetcher.set("mesa_prime_set", sellOrders(50))

	sched, _ := testScheduler(Config{
		Items:          []domain.TrackedItem{item},
		AlertMinProfit: 45,
	}, fetcher)

	sink := &recordingSink{}
	sched.AddSink(sink)
	sched.AddAlertSink(sink)

	ctx := context.Background()
	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}
	if len(sink.alerts) != 0 {
		t.Fatalf("cycle 1: got %d alerts, want 0", len(sink.alerts))
	}

	// Cycle 2: set climbs to 60, profit 50 crosses the threshold.
	fetcher.set("mesa_prime_set", sellOrders(60))
	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}
	var balancedAlerts int
	for _, a := range sink.alerts {
		if a.Reason != domain.AlertReasonProfit {
			t.Errorf("reason = %q, want %q", a.Reason, domain.AlertReasonProfit)
		}
		if a.Opportunity.Strategy == domain.StrategyBalanced {
			balancedAlerts++
		}
	}
	if balancedAlerts != 1 {
		t.Fatalf("cycle 2: got %d balanced alerts, want 1", balancedAlerts)
	}
	alertCount := len(sink.alerts)

	// Cycle 3: still over the line, no re-alert.
	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 3: %v", err)
	}
	if len(sink.alerts) != alertCount {
		t.Fatalf("cycle 3: alerts grew from %d to %d, want no change", alertCount, len(sink.alerts))
	}

	if len(sink.snapshots) != 3 {
		t.Errorf("got %d broadcasts, want 3", len(sink.snapshots))
	}
}

func TestCycleIDsIncrease(t *testing.T) {
	item := testItem()
	fetcher := &fakeFetcher{}
	fetcher.set("mesa_prime_chassis", sellOrders(10))
	fetcher.set("mesa_prime_set", sellOrders(50))

	sched, snapshots := testScheduler(Config{Items: []domain.TrackedItem{item}}, fetcher)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		if err := sched.RunCycle(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		if got := snapshots.Current().CycleID; got != uint64(i) {
			t.Fatalf("cycle %d: snapshot cycle id = %d", i, got)
		}
	}
}
