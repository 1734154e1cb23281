package stream

import "errors"

// ErrConnectionStopped is returned by the client sink once the receive flag
// has been cleared.
var ErrConnectionStopped = errors.New("client connection stopped")

type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is one client connection. ReadFrame blocks until a frame arrives or the
// connection is closed. WriteJSON must be safe for concurrent use and Close
// must be idempotent.
type Conn interface {
	ReadFrame() (Frame, error)
	WriteJSON(v any) error
	Close() error
}
