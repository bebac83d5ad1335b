package client

import (
	"github.com/luma/exar/protocol"
)

// state is where a client is in its lifecycle. It decides how inbound lines
// are decoded.
//
//   Idle -> Connecting -> Ready -> Awaiting -> Ready
//                                           -> Streaming
//
// Any state moves to Closed when the socket closes. Connect is allowed from
// Idle and Closed.
type state int

const (
	stateIdle state = iota

	// stateConnecting waits for the socket to open and then for Connected
	stateConnecting

	// stateReady can send a request
	stateReady

	// stateAwaiting waits for the response to the pending request
	stateAwaiting

	// stateStreaming decodes every line as an event
	stateStreaming

	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateReady:
		return "ready"
	case stateAwaiting:
		return "awaiting"
	case stateStreaming:
		return "streaming"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// request is the outstanding request of a client.
type request struct {
	// kind is the kind of the request, expect the kind of its response
	kind   protocol.Kind
	expect protocol.Kind

	resolve func(msg protocol.Message) bool
	reject  func(err error)

	// onEvent receives the events of a subscription
	onEvent func(*protocol.Event)
}

// expect builds the request for a message of kind whose response must be a
// T. resolve returns false if the message is not a T.
func expect[T protocol.Message](kind, response protocol.Kind, f *Future[T]) *request {
	return &request{
		kind:   kind,
		expect: response,
		resolve: func(msg protocol.Message) bool {
			value, ok := msg.(T)
			if !ok {
				return false
			}

			f.resolve(value)
			return true
		},
		reject: f.reject,
	}
}
