package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send before the socket has opened or after
	// it has closed.
	ErrNotOpen = errors.New("Socket is not open")
)

// Handler receives the events of a Socket.
//
// A socket calls its handler from a single goroutine, one event at a time,
// so handlers don't need to guard against concurrent events from the same
// socket. Opened is called at most once and always first, Closed is called
// exactly once and always last.
type Handler interface {
	// Opened is called once the connection is established.
	Opened()

	// Data is called with every chunk read from the connection. A chunk can
	// hold several lines or part of one. The slice is owned by the handler.
	Data(data []byte)

	// Error is called when the connection fails. Closed follows.
	Error(err error)

	// Closed is called when the connection is gone, whatever the reason.
	Closed()
}

// Socket is a bidirectional byte stream.
type Socket interface {
	Send(data []byte) error
	Close() error
}

// Opener opens sockets. Open must not block: the connection is established
// in the background and its outcome is reported to handler.
type Opener interface {
	Open(ctx context.Context, addr string, handler Handler) Socket
}

// Error is the error reported to Handler.Error.
type Error struct {
	Op   string
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
