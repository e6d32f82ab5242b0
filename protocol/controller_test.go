package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentwelfare-chat-relay/domain"
	"studentwelfare-chat-relay/hub"
)

type mockConn struct {
	id string

	mu        sync.Mutex
	sent      [][]byte
	dead      bool
	sessionID string
	username  string
	bound     bool
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.dead
}

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Bind(sessionID, username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound {
		return false
	}
	m.sessionID, m.username, m.bound = sessionID, username, true
	return true
}

func (m *mockConn) Binding() (string, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.username, m.bound
}

func (m *mockConn) Close() error { return nil }

func (m *mockConn) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

func joinFrame(sessionID, username string) []byte {
	return fmt.Appendf(nil, `{"type":"join","sessionId":%q,"username":%q}`, sessionID, username)
}

func messageFrame(text string) []byte {
	data, _ := json.Marshal(map[string]string{"type": "message", "message": text})
	return data
}

func lastEvent(t *testing.T, m *mockConn) domain.Event {
	t.Helper()
	frames := m.frames()
	require.NotEmpty(t, frames)
	var e domain.Event
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &e))
	return e
}

func TestController_SessionScenario(t *testing.T) {
	registry := hub.NewRegistry()
	c := NewController(registry)

	// u1 joins an unknown session: it is created and the replay is empty.
	a := &mockConn{id: "conn-a"}
	c.HandleFrame(a, joinFrame("s1", "u1"))

	sessionID, username, bound := a.Binding()
	require.True(t, bound)
	assert.Equal(t, "s1", sessionID)
	assert.Equal(t, "u1", username)

	frames := a.frames()
	require.Len(t, frames, 1)
	var history domain.History
	require.NoError(t, json.Unmarshal(frames[0], &history))
	assert.Equal(t, domain.EventHistory, history.Type)
	assert.Empty(t, history.Messages)

	// u2 joins: u1 is notified with the new count, u2 replays u1's join.
	b := &mockConn{id: "conn-b"}
	c.HandleFrame(b, joinFrame("s1", "u2"))

	joined := lastEvent(t, a)
	assert.Equal(t, domain.EventUserJoined, joined.Type)
	assert.Equal(t, "u2", joined.Username)
	assert.Equal(t, 2, joined.UsersCount)

	require.NoError(t, json.Unmarshal(b.frames()[0], &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, domain.EventUserJoined, history.Messages[0].Type)
	assert.Equal(t, "u1", history.Messages[0].Username)

	// u2 posts: both participants receive the message.
	c.HandleFrame(b, messageFrame("hi"))
	for _, conn := range []*mockConn{a, b} {
		msg := lastEvent(t, conn)
		assert.Equal(t, domain.EventMessage, msg.Type)
		assert.Equal(t, "u2", msg.Username)
		assert.Equal(t, "hi", msg.Message)
	}

	// u1 disconnects: u2 sees userLeft, the session survives.
	c.HandleClose(a)
	left := lastEvent(t, b)
	assert.Equal(t, domain.EventUserLeft, left.Type)
	assert.Equal(t, "u1", left.Username)
	assert.Equal(t, 1, left.UsersCount)
	_, ok := registry.Get("s1")
	require.True(t, ok)

	// u2 disconnects: the emptied session is removed.
	c.HandleClose(b)
	_, ok = registry.Get("s1")
	assert.False(t, ok)
}

func TestController_MessageIgnoredWhenUnbound(t *testing.T) {
	registry := hub.NewRegistry()
	c := NewController(registry)
	conn := &mockConn{id: "conn-a"}

	c.HandleFrame(conn, messageFrame("hello?"))

	_, _, bound := conn.Binding()
	assert.False(t, bound)
	assert.Empty(t, conn.frames())
	sessions, _ := registry.Stats()
	assert.Zero(t, sessions)
}

func TestController_RebindIgnored(t *testing.T) {
	registry := hub.NewRegistry()
	c := NewController(registry)
	conn := &mockConn{id: "conn-a"}
	c.HandleFrame(conn, joinFrame("s1", "u1"))

	c.HandleFrame(conn, joinFrame("s2", "u2"))

	sessionID, username, _ := conn.Binding()
	assert.Equal(t, "s1", sessionID)
	assert.Equal(t, "u1", username)
	sessions, _ := registry.Stats()
	assert.Equal(t, 1, sessions)
	assert.Len(t, conn.frames(), 1, "no second replay")
}

func TestController_DropsInvalidFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "not json", frame: []byte("not json")},
		{name: "unknown type", frame: []byte(`{"type":"leave"}`)},
		{name: "join without sessionId", frame: []byte(`{"type":"join","username":"u1"}`)},
		{name: "join without username", frame: []byte(`{"type":"join","sessionId":"s1"}`)},
		{name: "missing type", frame: []byte(`{"sessionId":"s1","username":"u1"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := hub.NewRegistry()
			c := NewController(registry)
			conn := &mockConn{id: "conn-a"}

			c.HandleFrame(conn, tt.frame)

			_, _, bound := conn.Binding()
			assert.False(t, bound)
			assert.Empty(t, conn.frames())
			sessions, _ := registry.Stats()
			assert.Zero(t, sessions)

			// The connection survives a bad frame and can still join.
			c.HandleFrame(conn, joinFrame("s1", "u1"))
			_, _, bound = conn.Binding()
			assert.True(t, bound)
		})
	}
}

func TestController_DropsBlankMessages(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "spaces", text: "   "},
		{name: "tabs and newlines", text: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := hub.NewRegistry()
			c := NewController(registry)
			a := &mockConn{id: "conn-a"}
			b := &mockConn{id: "conn-b"}
			c.HandleFrame(a, joinFrame("s1", "u1"))
			c.HandleFrame(b, joinFrame("s1", "u2"))
			before := len(b.frames())

			c.HandleFrame(a, messageFrame(tt.text))

			assert.Len(t, b.frames(), before, "no broadcast for blank text")

			// A later joiner's replay proves nothing was appended either.
			late := &mockConn{id: "conn-c"}
			c.HandleFrame(late, joinFrame("s1", "u3"))
			var history domain.History
			require.NoError(t, json.Unmarshal(late.frames()[0], &history))
			for _, e := range history.Messages {
				assert.NotEqual(t, domain.EventMessage, e.Type)
			}
		})
	}
}

func TestController_StaleCloseAfterReconnect(t *testing.T) {
	registry := hub.NewRegistry()
	c := NewController(registry)

	stale := &mockConn{id: "conn-1"}
	c.HandleFrame(stale, joinFrame("s1", "u1"))

	fresh := &mockConn{id: "conn-2"}
	c.HandleFrame(fresh, joinFrame("s1", "u1"))

	// The old connection's close lands after the rejoin; the session and
	// the fresh handle must be untouched.
	before := len(fresh.frames())
	c.HandleClose(stale)

	session, ok := registry.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 1, session.Participants())
	assert.Len(t, fresh.frames(), before)

	c.HandleClose(fresh)
	_, ok = registry.Get("s1")
	assert.False(t, ok)
}

func TestController_CloseWhileUnbound(t *testing.T) {
	registry := hub.NewRegistry()
	c := NewController(registry)
	conn := &mockConn{id: "conn-a"}

	c.HandleClose(conn)

	sessions, participants := registry.Stats()
	assert.Zero(t, sessions)
	assert.Zero(t, participants)
}
