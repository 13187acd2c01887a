package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const (
	sendBuffer    = 256
	writeDeadline = 5 * time.Second
)

// Transport is an indirection over *websocket.Conn to ease testing.
type Transport interface {
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection is one participant's live presence in a room. Owned by the
// Registry; outbound messages go through a buffered channel drained by
// the write pump, so a slow client can never stall a broadcast.
type Connection struct {
	ID   string
	User domain.User
	Room domain.RoomCode

	conn Transport
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConnection(t Transport, user domain.User, room domain.RoomCode) *Connection {
	return &Connection{
		ID:   uuid.NewString(),
		User: user,
		Room: room,
		conn: t,
		send: make(chan []byte, sendBuffer),
	}
}

// TrySend enqueues a payload without blocking. A full buffer drops the
// payload; the reader will catch up or disconnect on its own.
func (c *Connection) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close is idempotent and safe to call from any goroutine. It only
// stops new sends; the write pump drains whatever is already queued
// and closes the transport afterwards, so a farewell broadcast
// enqueued just before eviction still reaches the client.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// startWritePump pumps queued payloads to the network. The pump owns
// the transport and closes it on exit, after the send queue drained.
func (c *Connection) startWritePump() {
	go func() {
		defer func() {
			c.Close()
			_ = c.conn.Close()
		}()
		for data := range c.send {
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()
}
