package domain

import "time"

const (
	EventMessage    = "message"
	EventUserJoined = "userJoined"
	EventUserLeft   = "userLeft"
	EventHistory    = "history"
)

// Event is one chat event as it appears on the wire and in a session's
// history. Type discriminates the variant; fields unused by a variant are
// omitted from the encoding.
type Event struct {
	Type       string    `json:"type"`
	Username   string    `json:"username"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	UsersCount int       `json:"usersCount,omitempty"`
}

// History carries the replay sent once to a newly joined connection. It is
// never stored in a session's history, so replays cannot nest.
type History struct {
	Type     string  `json:"type"`
	Messages []Event `json:"messages"`
}

func NewMessage(username, text string, at time.Time) Event {
	return Event{Type: EventMessage, Username: username, Message: text, Timestamp: at}
}

func NewUserJoined(username string, at time.Time, count int) Event {
	return Event{Type: EventUserJoined, Username: username, Timestamp: at, UsersCount: count}
}

func NewUserLeft(username string, at time.Time, count int) Event {
	return Event{Type: EventUserLeft, Username: username, Timestamp: at, UsersCount: count}
}

func NewHistory(events []Event) History {
	return History{Type: EventHistory, Messages: events}
}

// Connection is one live transport connection. A connection carries at most
// one (sessionID, username) binding, assigned once by Bind; it is owned by
// the goroutine that reads its frames, except for the read-only Alive check
// performed during broadcast.
type Connection interface {
	ID() string
	Send(data []byte) error
	Alive() bool
	Bind(sessionID, username string) bool
	Binding() (sessionID, username string, bound bool)
	Close() error
}

// Handler consumes the lifecycle of one connection: every inbound frame in
// order, then exactly one close notification.
type Handler interface {
	HandleFrame(conn Connection, data []byte)
	HandleClose(conn Connection)
}
