package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davrix/relicflip/internal/domain"
	"github.com/davrix/relicflip/internal/server/ws"
)

func (f *fakeFetcher) setFail(slug string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[string]error)
	}
	f.fail[slug] = err
}

func readWSMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal %s: %v", payload, err)
	}
	return decoded
}

func wsMsgType(t *testing.T, decoded map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	if err := json.Unmarshal(decoded["type"], &typ); err != nil {
		t.Fatalf("message missing type: %v", err)
	}
	return typ
}

// A subscriber with a min_profit filter sees the tracked item while its
// orders are fetchable, and an explicit empty update once a part fetch
// fails and the item drops out of the next cycle.
func TestSubscriberSeesCycleResults(t *testing.T) {
	item := testItem()
	fetcher := &fakeFetcher{}
	fetcher.set("mesa_prime_chassis", sellOrders(10, 12, 15))
	fetcher.set("mesa_prime_set", sellOrders(50, 55, 60))

	sched, snapshots := testScheduler(Config{Items: []domain.TrackedItem{item}}, fetcher)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(ws.Config{DefaultPlatform: "pc"}, snapshots, log)
	sched.AddSink(hub)
	sched.AddAlertSink(hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{
		"type":       "set_config",
		"min_profit": 20,
	}); err != nil {
		t.Fatalf("write set_config: %v", err)
	}
	if msg := readWSMessage(t, conn); wsMsgType(t, msg) != "config_updated" {
		t.Fatalf("expected config_updated ack, got %s", msg["type"])
	}

	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 1: %v", err)
	}

	update := readWSMessage(t, conn)
	if got := wsMsgType(t, update); got != "market_update" {
		t.Fatalf("cycle 1 message type = %q, want market_update", got)
	}
	var opps []domain.Opportunity
	if err := json.Unmarshal(update["opportunities"], &opps); err != nil {
		t.Fatalf("decode opportunities: %v", err)
	}
	if len(opps) != 1 || opps[0].ItemID != "mesa_prime" {
		t.Fatalf("cycle 1 opportunities = %+v, want mesa_prime only", opps)
	}
	if opps[0].Profit < 20 {
		t.Fatalf("profit = %v, should pass the min_profit filter", opps[0].Profit)
	}

	// One part becomes unfetchable; the item drops out of the next cycle
	// and the subscriber still gets an update, now empty.
	fetcher.setFail("mesa_prime_chassis", errors.New("upstream 500"))

	if err := sched.RunCycle(ctx); err != nil {
		t.Fatalf("cycle 2: %v", err)
	}

	update = readWSMessage(t, conn)
	if got := wsMsgType(t, update); got != "market_update" {
		t.Fatalf("cycle 2 message type = %q, want market_update", got)
	}
	opps = nil
	if err := json.Unmarshal(update["opportunities"], &opps); err != nil {
		t.Fatalf("decode opportunities: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("cycle 2 opportunities = %+v, want empty", opps)
	}
}
