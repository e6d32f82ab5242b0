package hub

import (
	"encoding/json"
	"log/slog"

	"studentwelfare-chat-relay/domain"
)

// broadcastLocked delivers event to every live participant except skip.
// The caller must hold s.mu, which makes the participant set a consistent
// point-in-time snapshot for the whole fan-out. The event is serialized
// once; delivery is best-effort and non-blocking per recipient, so a
// handle whose connection is closing or whose send buffer is full is
// skipped without aborting delivery to the others.
func (s *Session) broadcastLocked(event domain.Event, skip domain.Connection) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("encode event", "session", s.id, "type", event.Type, "error", err)
		return
	}

	for username, conn := range s.participants {
		if skip != nil && conn.ID() == skip.ID() {
			continue
		}
		if !conn.Alive() {
			continue
		}
		if err := conn.Send(data); err != nil {
			slog.Warn("skipping slow participant", "session", s.id, "username", username, "error", err)
		}
	}
}

// unicast sends the history replay to a single connection. Same best-effort
// contract as broadcastLocked.
func (s *Session) unicast(conn domain.Connection, history domain.History) {
	data, err := json.Marshal(history)
	if err != nil {
		slog.Error("encode history", "session", s.id, "error", err)
		return
	}
	if !conn.Alive() {
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("skipping history replay", "session", s.id, "error", err)
	}
}
