package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

type fakeSender struct {
	mu       sync.Mutex
	titles   []string
	messages []string
}

func (f *fakeSender) Send(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func testAlert() domain.Alert {
	return domain.Alert{
		Opportunity: domain.Opportunity{
			ItemID:    "mesa_prime",
			ItemName:  "Mesa Prime",
			Platform:  "pc",
			Strategy:  domain.StrategyBalanced,
			PartsCost: 40,
			SetPrice:  100,
			SetSeller: "alice",
			Profit:    55,
			Margin:    0.55,
		},
		Reason: domain.AlertReasonProfit,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierDeliversQueuedAlerts(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier([]Sender{sender}, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = n.Run(ctx) }()

	n.Alert(testAlert())

	deadline := time.After(2 * time.Second)
	for sender.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("alert not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if !strings.Contains(sender.titles[0], "Mesa Prime") {
		t.Errorf("title = %q, want item name", sender.titles[0])
	}
	if !strings.Contains(sender.messages[0], "profit threshold") {
		t.Errorf("message = %q, want profit reason", sender.messages[0])
	}
}

func TestNotifierEventFilter(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier([]Sender{sender}, []string{"something_else"}, discardLogger())

	n.Alert(testAlert())

	if len(n.queue) != 0 {
		t.Fatal("filtered alert was queued")
	}
}

func TestFormatAlertMarginReason(t *testing.T) {
	a := testAlert()
	a.Reason = domain.AlertReasonMargin

	_, message := formatAlert(a)
	if !strings.Contains(message, "margin threshold") {
		t.Errorf("message = %q, want margin reason", message)
	}
	if !strings.Contains(message, "55.0%") {
		t.Errorf("message = %q, want margin percentage", message)
	}
}
