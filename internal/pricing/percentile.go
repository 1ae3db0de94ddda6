// Package pricing turns raw order lists into percentile-derived price
// estimates and arbitrage opportunities. Everything here is pure: no IO, no
// clocks, no shared state.
package pricing

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation at fractional rank (n-1)*p/100. values must be sorted in
// ascending order and non-empty; a single-element list returns that element
// at every percentile.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 1 {
		return values[0]
	}

	rank := (p / 100.0) * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper > n-1 {
		upper = n - 1
	}
	frac := rank - float64(lower)

	return values[lower] + frac*(values[upper]-values[lower])
}

// sortedPrices extracts the positive prices from orders as a sorted slice.
func sortedPrices(prices []int) []float64 {
	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p > 0 {
			out = append(out, float64(p))
		}
	}
	sort.Float64s(out)
	return out
}
