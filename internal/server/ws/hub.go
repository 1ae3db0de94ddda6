// Package ws implements the WebSocket subscriber hub: per-session filters,
// market_update fan-out on every published snapshot, and opportunity_alert
// delivery to matching sessions.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davrix/relicflip/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per session.
	sendBufferSize = 64
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Config sets hub defaults applied to every new session.
type Config struct {
	DefaultPlatform string
	DefaultStrategy domain.Strategy
}

// Hub manages connected subscriber sessions. It receives each published
// snapshot and every threshold alert, and forwards them to sessions whose
// filters match. The publish path never blocks on a subscriber.
type Hub struct {
	cfg       Config
	snapshots domain.SnapshotReader
	log       *slog.Logger

	sessions   map[*session]bool
	register   chan *session
	unregister chan *session
	broadcast  chan *domain.Snapshot
	alerts     chan domain.Alert
	mu         sync.RWMutex
}

// NewHub creates a Hub. snapshots provides the current snapshot so a session
// gets a market_update immediately on connect rather than waiting a cycle.
func NewHub(cfg Config, snapshots domain.SnapshotReader, log *slog.Logger) *Hub {
	if cfg.DefaultStrategy == "" {
		cfg.DefaultStrategy = domain.StrategyBalanced
	}
	return &Hub{
		cfg:        cfg,
		snapshots:  snapshots,
		log:        log,
		sessions:   make(map[*session]bool),
		register:   make(chan *session),
		unregister: make(chan *session),
		broadcast:  make(chan *domain.Snapshot, 16),
		alerts:     make(chan domain.Alert, 64),
	}
}

// Broadcast hands a published snapshot to the hub. It never blocks: if the
// hub's queue is full the snapshot is skipped, the next cycle supersedes it.
func (h *Hub) Broadcast(s *domain.Snapshot) {
	select {
	case h.broadcast <- s:
	default:
		h.log.Warn("ws: broadcast queue full, skipping snapshot",
			slog.Uint64("cycle", s.CycleID),
		)
	}
}

// Alert hands a threshold alert to the hub without blocking.
func (h *Hub) Alert(a domain.Alert) {
	select {
	case h.alerts <- a:
	default:
		h.log.Warn("ws: alert queue full, dropping alert",
			slog.String("item", a.Opportunity.ItemID),
		)
	}
}

// Run drives the hub's event loop: registration, snapshot fan-out, and alert
// delivery. It exits when ctx is cancelled, closing every session.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.sessions {
				s.close()
				delete(h.sessions, s)
			}
			h.mu.Unlock()
			return ctx.Err()

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			total := len(h.sessions)
			h.mu.Unlock()
			h.log.Info("ws: session connected",
				slog.String("session", s.id),
				slog.Int("total_sessions", total),
			)

		case s := <-h.unregister:
			h.drop(s)

		case snap := <-h.broadcast:
			h.fanOutSnapshot(snap)

		case a := <-h.alerts:
			h.fanOutAlert(a)
		}
	}
}

// drop removes a session from the hub and signals its pumps to stop. The
// send channel itself stays open, so a reply racing the disconnect is
// discarded rather than hitting a closed channel.
func (h *Hub) drop(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	if ok {
		delete(h.sessions, s)
	}
	total := len(h.sessions)
	h.mu.Unlock()

	s.close()

	if ok {
		h.log.Info("ws: session disconnected",
			slog.String("session", s.id),
			slog.Int("total_sessions", total),
		)
	}
}

// fanOutSnapshot sends a market_update to every session. The payload is
// filtered per session; an empty list is still sent so clients can tell a
// quiet market from a dead connection.
func (h *Hub) fanOutSnapshot(snap *domain.Snapshot) {
	h.mu.RLock()
	stale := h.push(snap, nil)
	h.mu.RUnlock()

	for _, s := range stale {
		h.drop(s)
	}
}

// fanOutAlert delivers an opportunity_alert to sessions whose filter would
// include the opportunity.
func (h *Hub) fanOutAlert(a domain.Alert) {
	h.mu.RLock()
	stale := h.push(nil, &a)
	h.mu.RUnlock()

	for _, s := range stale {
		h.drop(s)
	}
}

// push writes either a snapshot update or an alert to each session and
// returns the sessions whose buffers were full. Callers hold h.mu.
func (h *Hub) push(snap *domain.Snapshot, a *domain.Alert) []*session {
	var stale []*session
	for s := range h.sessions {
		filter := s.Filter()

		var (
			payload []byte
			err     error
		)
		switch {
		case snap != nil:
			payload, err = marketUpdatePayload(snap, filter)
		case a != nil:
			if !filter.Matches(a.Opportunity) {
				continue
			}
			payload, err = alertPayload(*a)
		}
		if err != nil {
			h.log.Error("ws: encode payload", slog.String("error", err.Error()))
			continue
		}

		select {
		case s.send <- payload:
		default:
			h.log.Warn("ws: slow session, disconnecting",
				slog.String("session", s.id),
			)
			stale = append(stale, s)
		}
	}
	return stale
}

// HandleWS upgrades the request and starts a subscriber session with the
// default filter.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := newSession(h, conn, Filter{
		Platform: h.cfg.DefaultPlatform,
		Strategy: h.cfg.DefaultStrategy,
	})

	h.register <- s
	s.sendCurrentSnapshot()

	go s.writePump()
	go s.readPump()
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// filteredOpportunities returns the snapshot's matching opportunities sorted
// by profit, best first.
func filteredOpportunities(snap *domain.Snapshot, f Filter) []domain.Opportunity {
	matched := make([]domain.Opportunity, 0)
	for _, o := range snap.List() {
		if f.Matches(o) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Profit != matched[j].Profit {
			return matched[i].Profit > matched[j].Profit
		}
		return matched[i].ItemID < matched[j].ItemID
	})
	return matched
}

var (
	_ domain.SnapshotSink = (*Hub)(nil)
	_ domain.AlertSink    = (*Hub)(nil)
)
