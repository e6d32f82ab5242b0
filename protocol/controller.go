package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"studentwelfare-chat-relay/domain"
	"studentwelfare-chat-relay/hub"
)

// Controller drives the per-connection lifecycle: unbound until the first
// valid join, active until the transport closes. The binding itself lives
// on the connection handle, so the controller holds no per-connection
// state and one instance serves every connection.
type Controller struct {
	registry *hub.Registry
	validate *validator.Validate
}

func NewController(registry *hub.Registry) *Controller {
	return &Controller{
		registry: registry,
		validate: validator.New(),
	}
}

// HandleFrame processes one inbound frame. Malformed or invalid frames are
// logged and dropped; they never terminate the connection.
func (c *Controller) HandleFrame(conn domain.Connection, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		slog.Warn("malformed frame", "connId", conn.ID(), "error", err)
		return
	}
	if err := c.validate.Struct(frame); err != nil {
		slog.Warn("invalid frame", "connId", conn.ID(), "type", frame.Type, "error", err)
		return
	}

	switch frame.Type {
	case "join":
		c.handleJoin(conn, frame)
	case "message":
		c.handleMessage(conn, frame)
	}
}

func (c *Controller) handleJoin(conn domain.Connection, frame Frame) {
	if _, _, bound := conn.Binding(); bound {
		// Rebinding is not supported; a connection belongs to one
		// session and username for its lifetime.
		slog.Debug("join ignored on bound connection", "connId", conn.ID())
		return
	}

	// The resolved session can be removed by a racing leave before the
	// join lands; a closed session refuses the join, so resolve again.
	for {
		session := c.registry.GetOrCreate(frame.SessionID)
		if session.Join(frame.Username, conn) {
			break
		}
	}
	conn.Bind(frame.SessionID, frame.Username)
}

func (c *Controller) handleMessage(conn domain.Connection, frame Frame) {
	sessionID, username, bound := conn.Binding()
	if !bound {
		slog.Debug("message ignored on unbound connection", "connId", conn.ID())
		return
	}
	if strings.TrimSpace(frame.Message) == "" {
		return
	}

	session, ok := c.registry.Get(sessionID)
	if !ok {
		return
	}
	session.Post(username, frame.Message)
}

// HandleClose runs once when the transport reports close or error. A
// connection that never completed a join has no session-side effects.
func (c *Controller) HandleClose(conn domain.Connection) {
	sessionID, _, bound := conn.Binding()
	if !bound {
		return
	}

	session, ok := c.registry.Get(sessionID)
	if !ok {
		return
	}
	if _, empty := session.Leave(conn); empty {
		c.registry.Remove(sessionID)
	}
}
