package domain

import "time"

// PartQuote is the resolved price for one component part: the percentile
// estimate together with the representative order nearest that estimate.
type PartQuote struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Seller string  `json:"seller"`
	Source string  `json:"source"` // e.g. "sell_p35"
}

// Opportunity is a computed arbitrage result for one tracked item, platform,
// and strategy. Opportunities are produced fresh every cycle and superseded,
// never patched in place.
type Opportunity struct {
	ItemID     string       `json:"item_id"`
	ItemName   string       `json:"item_name"`
	Category   ItemCategory `json:"category"`
	Platform   string       `json:"platform"`
	Strategy   Strategy     `json:"strategy"`
	Parts      []PartQuote  `json:"parts"`
	PartsCost  float64      `json:"parts_cost"`
	SetPrice   float64      `json:"set_price"`
	SetSeller  string       `json:"set_seller"`
	Fee        float64      `json:"fee"`
	Profit     float64      `json:"profit"`
	Margin     float64      `json:"margin"`
	ComputedAt time.Time    `json:"computed_at"`
}

// Key identifies the (item, platform, strategy) slot an opportunity occupies
// within a snapshot.
type Key struct {
	ItemID   string
	Platform string
	Strategy Strategy
}

// Key returns the snapshot slot for this opportunity.
func (o Opportunity) Key() Key {
	return Key{ItemID: o.ItemID, Platform: o.Platform, Strategy: o.Strategy}
}

// Snapshot is one cycle's complete, internally consistent set of
// opportunities. A snapshot is immutable after publication: every entry
// shares the same cycle id and readers never observe a partial update.
type Snapshot struct {
	CycleID       uint64
	ComputedAt    time.Time
	Opportunities map[Key]Opportunity
}

// Lookup returns the opportunity in the given slot, if present.
func (s *Snapshot) Lookup(k Key) (Opportunity, bool) {
	if s == nil {
		return Opportunity{}, false
	}
	o, ok := s.Opportunities[k]
	return o, ok
}

// List returns the snapshot's opportunities in unspecified order. The
// returned slice is freshly allocated; callers may sort or filter it.
func (s *Snapshot) List() []Opportunity {
	if s == nil {
		return nil
	}
	out := make([]Opportunity, 0, len(s.Opportunities))
	for _, o := range s.Opportunities {
		out = append(out, o)
	}
	return out
}
