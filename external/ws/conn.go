package ws

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/livetranscribe/internal/stream"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	closeGracePeriod = time.Second
	// maxFrameBytes bounds a single client frame. Audio chunks are a few KiB.
	maxFrameBytes = 1 << 20
)

// Conn adapts a gorilla websocket to stream.Conn.
type Conn struct {
	id     string
	socket *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func NewConn(id string, socket *websocket.Conn) *Conn {
	socket.SetReadLimit(maxFrameBytes)
	return &Conn{id: id, socket: socket}
}

var _ stream.Conn = (*Conn)(nil)

func (c *Conn) ReadFrame() (stream.Frame, error) {
	messageType, payload, err := c.socket.ReadMessage()
	if err != nil {
		return stream.Frame{}, err
	}
	return stream.Frame{Binary: messageType == websocket.BinaryMessage, Data: payload}, nil
}

func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("connection %s already closed", c.id)
	}
	if err := c.socket.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.socket.WriteJSON(v)
}

// Close sends a normal close frame and closes the socket. Later calls are no-ops.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	c.mu.Unlock()
	return c.socket.Close()
}
