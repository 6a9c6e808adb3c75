// Package ws wraps gorilla websocket connections and translates the wire
// protocol into presence tracker calls.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AbdessamadAe/FocusIsle/pkg/types"
)

// Connection wraps a websocket connection with a single writer
// goroutine. All writes go through Send; the write channel serializes
// them, so event fan-out from multiple goroutines never races on the
// underlying socket.
type Connection struct {
	conn    *websocket.Conn
	id      string
	userID  string
	writeCh chan []byte

	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a wrapper and starts its writer goroutine.
// id names this transport connection; userID is the durable identity
// assigned during the handshake.
func NewConnection(conn *websocket.Conn, id, userID string, writeTimeout time.Duration, bufferSize int) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		userID:       userID,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	go c.writeLoop()
	return c
}

// ID returns the transport connection id.
func (c *Connection) ID() string { return c.id }

// UserID returns the durable identity bound at connect time.
func (c *Connection) UserID() string { return c.userID }

// Send queues an event for delivery. It fails rather than blocks when
// the connection is closed or the writer cannot keep up.
func (c *Connection) Send(event types.Event) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts the connection down, stopping the writer goroutine. Safe
// to call from multiple cleanup paths.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
