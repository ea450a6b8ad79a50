package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	closeGrace     = time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 128
)

// Delivery failures. Both are transient from the router's point of view:
// the recipient catches up by paging.
var (
	ErrChannelClosed  = errors.New("realtime: channel closed")
	ErrBufferExceeded = errors.New("realtime: channel send buffer exceeded")
)

// Channel is one live, authenticated device connection.
type Channel interface {
	ID() string
	UserID() string
	// Send enqueues payload without blocking.
	Send(payload []byte) error
}

// Connection is a websocket-backed Channel. Outbound writes go through a
// bounded buffer drained by a single writer goroutine.
type Connection struct {
	id     string
	userID string

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	close  chan struct{}
	closed chan struct{}
}

var _ Channel = (*Connection)(nil)

// NewConnection constructs a Connection for the given user.
func NewConnection(userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		close:  make(chan struct{}),
		closed: make(chan struct{}),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Start launches the write loop. It must be called exactly once per connection.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload for delivery. A client too slow to drain its buffer
// is disconnected so one device cannot stall fan-out for everyone else.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrChannelClosed
	default:
	}

	select {
	case <-c.close:
		return ErrChannelClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return ErrBufferExceeded
	}
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.close
}

// Close marks the connection closed and returns immediately; the close
// handshake runs on its own goroutine because the write loop may be stuck
// on a stalled peer. Safe to call repeatedly.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		go c.teardown(code, reason)
	})
}

func (c *Connection) teardown(code int, reason string) {
	defer close(c.closed)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeGrace))
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
