package domain

import (
	"context"
	"time"
)

// SetPartName is the sentinel part name used for the assembled set in the
// price history.
const SetPartName = "set"

// PriceSnapshot is one append-only history row: the resolved price of a
// part (or the set sentinel) at a point in time.
type PriceSnapshot struct {
	ItemID    string
	PartName  string // component name or SetPartName
	Price     float64
	Seller    string
	Platform  string
	Strategy  Strategy
	Timestamp time.Time
}

// Trend classifies recent price movement within a query window.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// PartSummary is a rolling-window aggregate for one part of an item.
type PartSummary struct {
	PartName string  `json:"part_name"`
	Current  float64 `json:"current"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Average  float64 `json:"average"`
	Trend    Trend   `json:"trend"`
	Samples  int     `json:"samples"`
}

// HistoryStore is the append/query contract for the price time series.
// Append must never block the publish path; implementations queue writes
// internally. When the backing storage is unavailable, Query returns
// ErrHistoryUnavailable rather than stale data.
type HistoryStore interface {
	Append(snapshot *Snapshot)
	Query(ctx context.Context, itemID, platform string, window time.Duration) ([]PartSummary, error)
	TrimBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryArchiveStore provides read access to aged history rows for the
// cold-storage archiver. Only the query the archiver actually needs.
type HistoryArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time) ([]PriceSnapshot, error)
}
