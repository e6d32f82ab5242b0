package hub

import (
	"log/slog"
	"sync"
	"time"

	"studentwelfare-chat-relay/domain"
)

// Session is one chat room: a participant set keyed by username and the
// ordered event history replayed to late joiners. All mutations run under
// the session mutex, so operations on one session are serialized without
// ever blocking another session.
type Session struct {
	id string

	mu           sync.Mutex
	participants map[string]domain.Connection
	history      []domain.Event
	closed       bool
}

func newSession(id string) *Session {
	return &Session{
		id:           id,
		participants: make(map[string]domain.Connection),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Participants() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Join inserts conn under username, silently displacing any stale handle
// registered under the same name. The joiner is sent the history snapshot
// taken before its own UserJoined is appended, so it never sees its own
// join notification; everyone else is sent UserJoined with the post-join
// count. Snapshot, replay unicast, and append all happen in one critical
// section: a Message posted after the snapshot cannot be enqueued to the
// joiner ahead of its History frame.
//
// Join reports false when the session has already been removed from the
// registry; the caller must resolve a fresh session and retry.
func (s *Session) Join(username string, conn domain.Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	snapshot := append([]domain.Event{}, s.history...)
	s.unicast(conn, domain.NewHistory(snapshot))

	s.participants[username] = conn
	count := len(s.participants)

	joined := domain.NewUserJoined(username, time.Now(), count)
	s.history = append(s.history, joined)
	s.broadcastLocked(joined, conn)

	slog.Info("participant joined", "session", s.id, "username", username, "participants", count)
	return true
}

// Post appends a chat line with a server-assigned timestamp and fans it out
// to every participant, the sender included. The caller is responsible for
// dropping empty or whitespace-only text before posting.
func (s *Session) Post(username, text string) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := domain.NewMessage(username, text, time.Now())
	s.history = append(s.history, msg)
	s.broadcastLocked(msg, nil)
	return msg
}

// Leave removes conn's participant entry and notifies the remaining
// participants. Eviction compares handle identity, not the username string:
// a handle displaced by a later join under the same name is a no-op here,
// so an out-of-order close from a stale connection never evicts a
// reconnected user. Reports whether the entry was removed and whether the
// session is now empty; on empty the caller must ask the registry to
// remove the session.
func (s *Session) Leave(conn domain.Connection) (removed, empty bool) {
	_, username, bound := conn.Binding()
	if !bound {
		return false, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.participants[username]
	if !ok || current.ID() != conn.ID() {
		return false, len(s.participants) == 0
	}

	delete(s.participants, username)
	count := len(s.participants)
	slog.Info("participant left", "session", s.id, "username", username, "participants", count)
	if count == 0 {
		return true, true
	}

	left := domain.NewUserLeft(username, time.Now(), count)
	s.history = append(s.history, left)
	s.broadcastLocked(left, nil)
	return true, false
}
