package history

import (
	"math"
	"testing"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSummarizeEmpty(t *testing.T) {
	got := Summarize("neuroptics", nil)
	if got.Samples != 0 || got.Trend != domain.TrendStable {
		t.Fatalf("empty series: got %+v", got)
	}
}

func TestSummarizeAggregates(t *testing.T) {
	got := Summarize("chassis", []float64{10, 14, 12})

	if got.Current != 12 {
		t.Errorf("current = %v, want 12", got.Current)
	}
	if got.Min != 10 || got.Max != 14 {
		t.Errorf("min/max = %v/%v, want 10/14", got.Min, got.Max)
	}
	if !approx(got.Average, 12) {
		t.Errorf("average = %v, want 12", got.Average)
	}
	if got.Samples != 3 {
		t.Errorf("samples = %d, want 3", got.Samples)
	}
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   domain.Trend
	}{
		{"too few samples", []float64{10, 20}, domain.TrendStable},
		{"rising", []float64{10, 10, 10, 12, 12, 12}, domain.TrendUp},
		{"falling", []float64{12, 12, 12, 10, 10, 10}, domain.TrendDown},
		{"flat", []float64{10, 10, 10, 10, 10, 10}, domain.TrendStable},
		{"small drift stays stable", []float64{100, 100, 100, 102, 102, 102}, domain.TrendStable},
		{"boundary just over threshold", []float64{100, 100, 100, 106, 106, 106}, domain.TrendUp},
		{"zero baseline", []float64{0, 0, 0, 5, 5, 5}, domain.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trend(tt.prices); got != tt.want {
				t.Errorf("trend(%v) = %v, want %v", tt.prices, got, tt.want)
			}
		})
	}
}

func TestSnapshotRowsBalancedOnly(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	snap := &domain.Snapshot{
		CycleID:    3,
		ComputedAt: now,
		Opportunities: map[domain.Key]domain.Opportunity{
			{ItemID: "mesa_prime", Platform: "pc", Strategy: domain.StrategyBalanced}: {
				ItemID:   "mesa_prime",
				Platform: "pc",
				Strategy: domain.StrategyBalanced,
				Parts: []domain.PartQuote{
					{Name: "Neuroptics", Price: 12, Seller: "alice"},
					{Name: "Chassis", Price: 15, Seller: "bob"},
				},
				SetPrice:  60,
				SetSeller: "carol",
			},
			{ItemID: "mesa_prime", Platform: "pc", Strategy: domain.StrategyAggressive}: {
				ItemID:   "mesa_prime",
				Platform: "pc",
				Strategy: domain.StrategyAggressive,
				Parts:    []domain.PartQuote{{Name: "Neuroptics", Price: 10}},
				SetPrice: 55,
			},
		},
	}

	rows := snapshotRows(snap)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3 (two parts + set, balanced only)", len(rows))
	}

	var setRow *domain.PriceSnapshot
	for i := range rows {
		if rows[i].Strategy != domain.StrategyBalanced {
			t.Errorf("row %d has strategy %q, want balanced", i, rows[i].Strategy)
		}
		if !rows[i].Timestamp.Equal(now) {
			t.Errorf("row %d timestamp = %v, want %v", i, rows[i].Timestamp, now)
		}
		if rows[i].PartName == domain.SetPartName {
			setRow = &rows[i]
		}
	}
	if setRow == nil {
		t.Fatal("missing set sentinel row")
	}
	if setRow.Price != 60 || setRow.Seller != "carol" {
		t.Errorf("set row = %+v, want price 60 seller carol", setRow)
	}
}

func TestSnapshotRowsNil(t *testing.T) {
	if rows := snapshotRows(nil); rows != nil {
		t.Fatalf("nil snapshot: got %v, want nil", rows)
	}
}
