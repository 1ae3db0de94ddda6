// Package notify delivers threshold alerts to operator channels such as
// Telegram and Discord. Alerts are queued and dispatched asynchronously so a
// slow channel never stalls the scheduler's cycle.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// Event types the notifier can filter on.
const (
	EventOpportunityAlert = "opportunity_alert"
)

// sendTimeout bounds one delivery attempt per sender.
const sendTimeout = 10 * time.Second

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel, e.g. "telegram".
	Name() string
}

// Notifier queues alerts and fans them out to every configured sender. Only
// events whose type appears in the allowed set are forwarded; an empty set
// allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	log     *slog.Logger
	queue   chan domain.Alert
}

// NewNotifier creates a Notifier delivering to the given senders. Run must be
// started for queued alerts to go out.
func NewNotifier(senders []Sender, events []string, log *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		log:     log.With(slog.String("component", "notifier")),
		queue:   make(chan domain.Alert, 32),
	}
}

// Alert enqueues a threshold alert for delivery. It never blocks: when the
// queue is full the alert is dropped and logged.
func (n *Notifier) Alert(a domain.Alert) {
	if len(n.events) > 0 && !n.events[EventOpportunityAlert] {
		return
	}
	select {
	case n.queue <- a:
	default:
		n.log.Warn("alert queue full, dropping",
			slog.String("item", a.Opportunity.ItemID),
			slog.String("strategy", string(a.Opportunity.Strategy)),
		)
	}
}

// Run drains the alert queue until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-n.queue:
			n.dispatch(ctx, a)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, a domain.Alert) {
	title, message := formatAlert(a)

	for _, s := range n.senders {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sctx, title, message)
		cancel()
		if err != nil {
			n.log.Error("sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.log.Debug("alert delivered",
			slog.String("sender", s.Name()),
			slog.String("item", a.Opportunity.ItemID),
		)
	}
}

// formatAlert renders an alert into a channel-agnostic title and body.
func formatAlert(a domain.Alert) (title, message string) {
	o := a.Opportunity
	title = fmt.Sprintf("%s (%s, %s)", o.ItemName, o.Strategy, o.Platform)

	reason := "profit threshold crossed"
	if a.Reason == domain.AlertReasonMargin {
		reason = "margin threshold crossed"
	}

	message = fmt.Sprintf(
		"%s\nBuy parts: %.1fp  Sell set: %.1fp (via %s)\nProfit: %.1fp  Margin: %.1f%%",
		reason, o.PartsCost, o.SetPrice, o.SetSeller, o.Profit, o.Margin*100,
	)
	return title, message
}

var _ domain.AlertSink = (*Notifier)(nil)
