package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"studentwelfare-chat-relay/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Conn adapts one gorilla/websocket connection to domain.Connection. Two
// goroutines serve it: readPump dispatches inbound frames to the handler
// and fires the close notification, writePump drains the buffered send
// channel so a slow peer never blocks a broadcaster.
type Conn struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	handler domain.Handler

	alive atomic.Bool

	mu        sync.RWMutex
	sessionID string
	username  string
	bound     bool
}

func NewConn(id string, ws *websocket.Conn, h domain.Handler) *Conn {
	c := &Conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, 256),
		handler: h,
	}
	c.alive.Store(true)
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Alive() bool { return c.alive.Load() }

// Bind assigns the session/username binding. It succeeds exactly once;
// the binding is immutable for the rest of the connection's lifetime.
func (c *Conn) Bind(sessionID, username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound {
		return false
	}
	c.sessionID = sessionID
	c.username = username
	c.bound = true
	return true
}

func (c *Conn) Binding() (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID, c.username, c.bound
}

// Send enqueues data for the write pump without blocking. A connection
// that is closing or whose buffer is full reports ErrCloseSent and the
// frame is dropped.
func (c *Conn) Send(data []byte) error {
	if !c.alive.Load() {
		return websocket.ErrCloseSent
	}
	select {
	case c.send <- data:
		return nil
	default:
		return websocket.ErrCloseSent
	}
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.alive.Store(false)
		c.handler.HandleClose(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("read error", "connId", c.id, "error", err)
			}
			return
		}

		c.handler.HandleFrame(c, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.alive.Store(false)
		c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
