package domain

import "fmt"

// Strategy is a closed enumeration of pricing strategies. Unknown names are
// rejected at parse time rather than falling back to a default.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyBalanced     Strategy = "balanced"
	StrategyAggressive   Strategy = "aggressive"
)

// Strategies lists every strategy in a fixed, deterministic order.
var Strategies = []Strategy{StrategyConservative, StrategyBalanced, StrategyAggressive}

// StrategyDefinition selects the percentile and order side used for the
// buy-side (acquiring parts) and sell-side (moving the assembled set)
// price estimates.
type StrategyDefinition struct {
	Name           Strategy
	BuyPercentile  float64
	BuySide        OrderSide
	SellPercentile float64
	SellSide       OrderSide
}

// strategyTable is the fixed strategy set, resolved at startup.
var strategyTable = map[Strategy]StrategyDefinition{
	StrategyConservative: {
		Name:           StrategyConservative,
		BuyPercentile:  50,
		BuySide:        SideSell,
		SellPercentile: 100,
		SellSide:       SideBuy,
	},
	StrategyBalanced: {
		Name:           StrategyBalanced,
		BuyPercentile:  35,
		BuySide:        SideSell,
		SellPercentile: 50,
		SellSide:       SideSell,
	},
	StrategyAggressive: {
		Name:           StrategyAggressive,
		BuyPercentile:  20,
		BuySide:        SideSell,
		SellPercentile: 65,
		SellSide:       SideSell,
	},
}

// ParseStrategy validates a strategy name and returns its definition.
func ParseStrategy(name string) (StrategyDefinition, error) {
	def, ok := strategyTable[Strategy(name)]
	if !ok {
		return StrategyDefinition{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return def, nil
}

// Definition returns the definition for a known strategy. It panics on an
// unknown value; use ParseStrategy for untrusted input.
func (s Strategy) Definition() StrategyDefinition {
	def, ok := strategyTable[s]
	if !ok {
		panic(fmt.Sprintf("domain: no definition for strategy %q", s))
	}
	return def
}
