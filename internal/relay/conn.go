package relay

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when sending on a closed connection.
var ErrConnClosed = errors.New("connection closed")

// wsConn wraps a websocket connection with a write lock so concurrent
// forwarders and control replies never interleave frames.
type wsConn struct {
	mu     sync.Mutex
	sock   *websocket.Conn
	closed bool
}

func newWSConn(sock *websocket.Conn) *wsConn {
	return &wsConn{sock: sock}
}

// Send writes a raw message preserving its websocket message type.
func (c *wsConn) Send(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.sock.WriteMessage(messageType, data)
}

// SendJSON writes a JSON text message.
func (c *wsConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.sock.WriteJSON(v)
}

// Close closes the underlying socket. Safe to call more than once.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}
