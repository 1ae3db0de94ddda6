// Package handler holds the plain HTTP handlers; everything streaming lives
// in the ws hub.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/davrix/relicflip/internal/domain"
)

// SessionCounter reports how many WebSocket subscribers are connected.
type SessionCounter interface {
	SessionCount() int
}

// HealthHandler serves the health-check endpoint with pipeline liveness
// details: the last published cycle and the current subscriber count.
type HealthHandler struct {
	snapshots domain.SnapshotReader
	sessions  SessionCounter
	startedAt time.Time
}

// NewHealthHandler creates a HealthHandler. sessions may be nil in watch
// mode deployments that still expose health.
func NewHealthHandler(snapshots domain.SnapshotReader, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{
		snapshots: snapshots,
		sessions:  sessions,
		startedAt: time.Now().UTC(),
	}
}

// HealthCheck reports service liveness and the freshness of the latest cycle.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if snap := h.snapshots.Current(); snap != nil {
		body["cycle"] = snap.CycleID
		body["last_cycle_at"] = snap.ComputedAt.UTC().Format(time.RFC3339)
		body["opportunities"] = len(snap.Opportunities)
	}
	if h.sessions != nil {
		body["subscribers"] = h.sessions.SessionCount()
	}

	writeJSON(w, http.StatusOK, body)
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}
