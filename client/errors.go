package client

import (
	"errors"
	"fmt"

	"github.com/luma/exar/protocol"
)

var (
	ErrNotConnected     = errors.New("Client is not connected")
	ErrAlreadyConnected = errors.New("Client is already connected")

	// ErrRequestInFlight is returned when a request is made before the
	// response to the previous one has arrived. Responses carry no request
	// id so only one request can be outstanding at a time.
	ErrRequestInFlight = errors.New("Another request is waiting for its response")

	// ErrStreaming is returned when a request is made after a subscription
	// has started. From then on the server only sends events.
	ErrStreaming = errors.New("Connection is streaming events and cannot send requests")

	// ErrUnsolicitedClosure rejects the outstanding request when the
	// connection closes without Disconnect being called.
	ErrUnsolicitedClosure = errors.New("Connection closed unexpectedly")

	// ErrClosed rejects the outstanding request when Disconnect is called.
	ErrClosed = errors.New("Client disconnected")

	// ErrMalformedMessage is wrapped by errors for responses that could not
	// be decoded into the expected message.
	ErrMalformedMessage = protocol.ErrMalformedMessage
)

// TransportError wraps a failure reported by the socket.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("Transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is returned when the server answers a request with an Error
// message.
type ServerError struct {
	Request protocol.Kind
	Reason  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server rejected %s: %s", e.Request, e.Reason)
}
