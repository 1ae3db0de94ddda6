package domain

// Alert reasons emitted by the scheduler when an opportunity newly crosses
// the configured thresholds.
const (
	AlertReasonProfit = "crossed_profit_threshold"
	AlertReasonMargin = "crossed_margin_threshold"
)

// Alert is an opportunity that newly crossed an alert threshold this cycle.
type Alert struct {
	Opportunity Opportunity `json:"opportunity"`
	Reason      string      `json:"reason"`
}

// AlertSink receives threshold-crossing alerts. Implementations must not
// block the scheduler's cycle.
type AlertSink interface {
	Alert(a Alert)
}
