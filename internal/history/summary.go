package history

import "github.com/davrix/relicflip/internal/domain"

// trendThreshold is the relative change between the earliest and most recent
// thirds of a series below which the trend reads as stable.
const trendThreshold = 0.05

// Summarize aggregates one part's price series, ordered oldest to newest,
// into a rolling-window summary.
func Summarize(partName string, prices []float64) domain.PartSummary {
	summary := domain.PartSummary{
		PartName: partName,
		Trend:    domain.TrendStable,
		Samples:  len(prices),
	}
	if len(prices) == 0 {
		return summary
	}

	summary.Current = prices[len(prices)-1]
	summary.Min = prices[0]
	summary.Max = prices[0]
	var sum float64
	for _, p := range prices {
		if p < summary.Min {
			summary.Min = p
		}
		if p > summary.Max {
			summary.Max = p
		}
		sum += p
	}
	summary.Average = sum / float64(len(prices))
	summary.Trend = trend(prices)
	return summary
}

// trend compares the mean of the most recent third of the series against the
// mean of the earliest third. Fewer than three samples is always stable.
func trend(prices []float64) domain.Trend {
	n := len(prices)
	if n < 3 {
		return domain.TrendStable
	}

	third := n / 3
	early := mean(prices[:third])
	recent := mean(prices[n-third:])
	if early == 0 {
		return domain.TrendStable
	}

	change := (recent - early) / early
	switch {
	case change > trendThreshold:
		return domain.TrendUp
	case change < -trendThreshold:
		return domain.TrendDown
	default:
		return domain.TrendStable
	}
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
