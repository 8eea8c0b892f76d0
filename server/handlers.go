package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatMaxAge bounds how stale the poller heartbeat may be before the
// service reports not ready.
const heartbeatMaxAge = 2 * time.Minute

// Handlers holds dependencies for the HTTP endpoints.
type Handlers struct {
	db      *sql.DB
	started time.Time
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests. The service is ready when the
// database answers and the update poller has stamped a recent kv heartbeat.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"bot", func() error {
			var stamp string
			err := h.db.QueryRowContext(r.Context(),
				"SELECT value FROM kv WHERE key='bot_heartbeat'").Scan(&stamp)
			if err == sql.ErrNoRows {
				return fmt.Errorf("no poller heartbeat yet")
			}
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339, stamp)
			if err != nil {
				return fmt.Errorf("malformed heartbeat stamp %q", stamp)
			}
			if time.Since(ts) > heartbeatMaxAge {
				return fmt.Errorf("poller heartbeat stale since %s", stamp)
			}
			return nil
		}},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not_ready",
				"check":  check.name,
				"error":  err.Error(),
			})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports operational counters: allow-list size, last broadcast
// summary, and process uptime.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var users int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM allowed_users").Scan(&users); err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	var lastBroadcast string
	err := h.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key='last_broadcast'").Scan(&lastBroadcast)
	if err != nil && err != sql.ErrNoRows {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}
	var events int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM event_log").Scan(&events); err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"authorized_users": users,
		"event_log_size":   events,
		"last_broadcast":   lastBroadcast,
		"uptime_seconds":   int(time.Since(h.started).Seconds()),
	})
}
