package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// quote is a resolved price estimate for one order list: the interpolated
// percentile value and the representative order nearest it.
type quote struct {
	price  float64
	seller string
	source string
}

// ComputeOpportunity derives the arbitrage result for one tracked item under
// one strategy, using only orders collected within the current fetch cycle.
// ordersBySlug maps upstream slugs (item.PartSlug / item.SetSlug) to their
// fetched order lists.
//
// It returns ok=false when any required part, or the set itself, has no
// usable orders; the caller must treat that as "no data", never as a zero
// price.
func ComputeOpportunity(
	item domain.TrackedItem,
	ordersBySlug map[string][]domain.Order,
	def domain.StrategyDefinition,
	platform string,
	feePct float64,
	now time.Time,
) (domain.Opportunity, bool) {
	parts := make([]domain.PartQuote, 0, len(item.Parts))
	partsCost := 0.0

	for _, part := range item.Parts {
		q, ok := resolveQuote(ordersBySlug[item.PartSlug(part)], platform, def.BuySide, def.BuyPercentile)
		if !ok {
			return domain.Opportunity{}, false
		}
		parts = append(parts, domain.PartQuote{
			Name:   part,
			Price:  q.price,
			Seller: q.seller,
			Source: q.source,
		})
		partsCost += q.price
	}

	set, ok := resolveQuote(ordersBySlug[item.SetSlug()], platform, def.SellSide, def.SellPercentile)
	if !ok {
		return domain.Opportunity{}, false
	}

	fee := set.price * feePct
	profit := set.price - partsCost - fee
	margin := 0.0
	if set.price != 0 {
		margin = profit / set.price
	}

	return domain.Opportunity{
		ItemID:     item.ID,
		ItemName:   item.Name,
		Category:   item.Category,
		Platform:   platform,
		Strategy:   def.Name,
		Parts:      parts,
		PartsCost:  partsCost,
		SetPrice:   set.price,
		SetSeller:  set.seller,
		Fee:        fee,
		Profit:     profit,
		Margin:     margin,
		ComputedAt: now,
	}, true
}

// resolveQuote filters orders to the usable subset for (platform, side),
// computes the percentile price, and picks the representative order.
func resolveQuote(orders []domain.Order, platform string, side domain.OrderSide, percentile float64) (quote, bool) {
	usable := make([]domain.Order, 0, len(orders))
	prices := make([]int, 0, len(orders))
	for _, o := range orders {
		if o.Usable(platform, side) && o.Price > 0 {
			usable = append(usable, o)
			prices = append(prices, o.Price)
		}
	}
	if len(usable) == 0 {
		return quote{}, false
	}

	target := Percentile(sortedPrices(prices), percentile)

	return quote{
		price:  target,
		seller: representative(usable, target).Seller,
		source: fmt.Sprintf("%s_p%g", side, percentile),
	}, true
}

// representative picks the order nearest the target price. Ties break to
// the lower price, then to the lexicographically smallest seller name, so
// the chosen seller is deterministic across runs regardless of upstream
// ordering.
func representative(orders []domain.Order, target float64) domain.Order {
	best := orders[0]
	bestDist := math.Abs(float64(best.Price) - target)

	for _, o := range orders[1:] {
		dist := math.Abs(float64(o.Price) - target)
		switch {
		case dist < bestDist:
			best, bestDist = o, dist
		case dist == bestDist && o.Price < best.Price:
			best = o
		case dist == bestDist && o.Price == best.Price && o.Seller < best.Seller:
			best = o
		}
	}
	return best
}
