package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/davrix/relicflip/internal/domain"
)

// Filter is a session's view preference. Zero thresholds match everything.
type Filter struct {
	Platform  string          `json:"platform"`
	Strategy  domain.Strategy `json:"strategy"`
	MinProfit float64         `json:"min_profit"`
	MinMargin float64         `json:"min_margin"`
}

// Matches reports whether an opportunity passes the filter.
func (f Filter) Matches(o domain.Opportunity) bool {
	if f.Platform != "" && o.Platform != f.Platform {
		return false
	}
	if f.Strategy != "" && o.Strategy != f.Strategy {
		return false
	}
	return o.Profit >= f.MinProfit && o.Margin >= f.MinMargin
}

// session is one connected subscriber. The filter is guarded by the
// session's own mutex so updates never contend with other sessions.
//
// send is never closed; disconnection is signalled through done so that a
// concurrent reply from the read side can never hit a closed channel.
type session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu     sync.Mutex
	filter Filter
}

func newSession(h *Hub, conn *websocket.Conn, filter Filter) *session {
	return &session{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		filter: filter,
	}
}

// close signals the session's pumps to stop. Safe to call from any
// goroutine, any number of times.
func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Filter returns a copy of the session's current filter.
func (s *session) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// inbound is the client -> server message shape. Absent fields in a
// set_config message leave the corresponding filter field unchanged.
type inbound struct {
	Type      string   `json:"type"`
	Platform  *string  `json:"platform"`
	Strategy  *string  `json:"strategy"`
	MinProfit *float64 `json:"min_profit"`
	MinMargin *float64 `json:"min_margin"`
}

type marketUpdateMsg struct {
	Type          string               `json:"type"`
	Opportunities []domain.Opportunity `json:"opportunities"`
	Timestamp     string               `json:"timestamp"`
}

type alertMsg struct {
	Type        string             `json:"type"`
	Opportunity domain.Opportunity `json:"opportunity"`
	Reason      string             `json:"reason"`
}

type configUpdatedMsg struct {
	Type   string `json:"type"`
	Config Filter `json:"config"`
}

type errorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func marketUpdatePayload(snap *domain.Snapshot, f Filter) ([]byte, error) {
	return json.Marshal(marketUpdateMsg{
		Type:          "market_update",
		Opportunities: filteredOpportunities(snap, f),
		Timestamp:     snap.ComputedAt.UTC().Format(time.RFC3339),
	})
}

func alertPayload(a domain.Alert) ([]byte, error) {
	return json.Marshal(alertMsg{
		Type:        "opportunity_alert",
		Opportunity: a.Opportunity,
		Reason:      a.Reason,
	})
}

// readPump consumes client messages until the connection drops. Only
// set_config is meaningful; anything else gets an error reply.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Warn("ws: unexpected close",
					slog.String("session", s.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			s.reply(errorMsg{Type: "error", Error: "malformed message"})
			continue
		}

		switch msg.Type {
		case "set_config":
			s.applyConfig(msg)
		default:
			s.reply(errorMsg{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

// applyConfig merges a partial set_config into the session filter and
// acknowledges with the resulting config.
func (s *session) applyConfig(msg inbound) {
	var strategy domain.Strategy
	if msg.Strategy != nil {
		def, err := domain.ParseStrategy(*msg.Strategy)
		if err != nil {
			s.reply(errorMsg{Type: "error", Error: err.Error()})
			return
		}
		strategy = def.Name
	}

	s.mu.Lock()
	if msg.Platform != nil {
		s.filter.Platform = *msg.Platform
	}
	if strategy != "" {
		s.filter.Strategy = strategy
	}
	if msg.MinProfit != nil {
		s.filter.MinProfit = *msg.MinProfit
	}
	if msg.MinMargin != nil {
		s.filter.MinMargin = *msg.MinMargin
	}
	updated := s.filter
	s.mu.Unlock()

	s.reply(configUpdatedMsg{Type: "config_updated", Config: updated})
}

// reply queues a message to this session only, dropping it if the buffer is
// full; the write pump notices dead connections on its own.
func (s *session) reply(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case s.send <- payload:
	case <-s.done:
	default:
	}
}

// sendCurrentSnapshot pushes the latest published snapshot so a new session
// sees market state immediately instead of waiting out a refresh interval.
func (s *session) sendCurrentSnapshot() {
	snap := s.hub.snapshots.Current()
	if snap == nil {
		return
	}
	payload, err := marketUpdatePayload(snap, s.Filter())
	if err != nil {
		return
	}
	select {
	case s.send <- payload:
	case <-s.done:
	default:
	}
}

// writePump pushes queued messages and periodic pings to the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
