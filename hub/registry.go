package hub

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Registry owns every live Session, keyed by the caller-supplied session
// id. Sessions are created lazily on first join and removed the moment
// their last participant leaves.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the session for id, creating an empty one if needed.
// Safe under concurrent calls for the same or different ids.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = newSession(id)
	r.sessions[id] = s
	slog.Info("session created", "session", id)
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes the session for id only if it has no participants. The
// count is re-checked under both locks because a join may race the leave
// that emptied the session; a removed session is marked closed so a join
// still holding its pointer fails over to a fresh GetOrCreate.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}

	s.mu.Lock()
	if len(s.participants) == 0 {
		s.closed = true
		delete(r.sessions, id)
		slog.Info("session removed", "session", id)
	}
	s.mu.Unlock()
}

// Stats reports the number of live sessions and total participants.
func (r *Registry) Stats() (sessions, participants int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions), lo.SumBy(lo.Values(r.sessions), func(s *Session) int {
		return s.Participants()
	})
}
