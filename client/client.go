package client

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/exar/internal/metrics"
	"github.com/luma/exar/protocol"
	"github.com/luma/exar/transport"
)

const DefaultAddr = "127.0.0.1:38580"

type Options struct {
	// Addr of the Exar server, defaults to DefaultAddr
	Addr string

	// Username and Password are sent with every Connect. Both empty sends
	// no credentials.
	Username string
	Password string

	// Opener opens the socket, defaults to a transport.TCP
	Opener transport.Opener

	Log     *zap.Logger
	Metrics *metrics.Client
}

// Client speaks the Exar protocol over a single socket.
//
// Every operation returns straight away with a Future. Responses carry no
// request id, so a client only allows one outstanding request: an operation
// made before the previous one settled fails with ErrRequestInFlight. Once
// a subscription is accepted the connection only carries events and further
// requests fail with ErrStreaming.
//
// Callbacks are called from the socket's goroutine, one at a time and in
// the order the server sent them. They must not block for long as they hold
// up every later event.
type Client struct {
	mu sync.Mutex

	options Options
	opener  transport.Opener

	socket  transport.Socket
	state   state
	pending *request

	// connectLine is sent once the socket opens
	connectLine []byte

	lines   protocol.LineBuffer
	onEvent func(*protocol.Event)
	onClose func()

	// session is bumped by every Connect, events from older sockets are ignored
	session uint64

	// closedByClient is set when the client closed the socket itself, the
	// close handler is only called for closures it did not ask for
	closedByClient bool
	closeNotified  bool

	log     *zap.Logger
	metrics *metrics.Client
}

func New(options Options) *Client {
	if options.Addr == "" {
		options.Addr = DefaultAddr
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	opener := options.Opener
	if opener == nil {
		opener = transport.NewTCP(transport.Options{
			Log: options.Log.Named("transport"),
		})
	}

	return &Client{
		options: options,
		opener:  opener,
		log:     options.Log,
		metrics: options.Metrics,
	}
}

// Connect opens the socket and binds the session to collection. It can be
// called again once a previous session has closed.
//
// ctx bounds opening the socket only.
func (c *Client) Connect(ctx context.Context, collection string) *Future[*protocol.Connected] {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateIdle, stateClosed:
	default:
		return failed[*protocol.Connected](ErrAlreadyConnected)
	}

	msg := &protocol.Connect{
		Collection: collection,
		Username:   c.options.Username,
		Password:   c.options.Password,
	}

	line, err := protocol.Encode(msg)
	if err != nil {
		c.metrics.RequestFailed(string(protocol.KindConnect))
		return failed[*protocol.Connected](err)
	}

	f := newFuture[*protocol.Connected]()

	c.session++
	c.state = stateConnecting
	c.pending = expect(protocol.KindConnect, protocol.KindConnected, f)
	c.connectLine = line
	c.lines.Reset()
	c.onEvent = nil
	c.closedByClient = false
	c.closeNotified = false
	c.log = c.options.Log.With(zap.String("collection", collection))

	c.log.Info("Connecting", zap.String("addr", c.options.Addr))

	// The handler waits on c.mu, so it can't see the socket before it is set
	c.socket = c.opener.Open(ctx, c.options.Addr, &socketHandler{client: c, session: c.session})

	return f
}

// OnClose registers handler to be called once when the connection closes
// without Disconnect being called.
func (c *Client) OnClose(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onClose = handler
}

// Disconnect closes the socket. The outstanding request, if any, is
// rejected with ErrClosed and the close handler is not called.
func (c *Client) Disconnect() error {
	c.mu.Lock()

	socket := c.socket
	if socket == nil {
		c.mu.Unlock()
		return nil
	}

	c.closedByClient = true
	c.state = stateClosed

	if c.pending != nil {
		c.rejectLocked(c.pending, ErrClosed)
	}

	log := c.log
	c.mu.Unlock()

	log.Info("Disconnecting")

	return socket.Close()
}

// Publish appends event to the collection. The result holds the id the
// server assigned to it.
func (c *Client) Publish(event protocol.Event) *Future[*protocol.Published] {
	c.mu.Lock()

	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		c.metrics.RequestFailed(string(protocol.KindPublish))
		return failed[*protocol.Published](err)
	}

	f := newFuture[*protocol.Published]()
	send := c.beginLocked(&protocol.Publish{Event: event}, expect(protocol.KindPublish, protocol.KindPublished, f))

	c.mu.Unlock()
	go send()

	return f
}

// Subscribe starts a subscription for the events matching query. Once the
// result resolves, onEvent is called with every event the server sends and
// with nil whenever a batch of events ends.
//
// The connection stays dedicated to the subscription until it closes.
func (c *Client) Subscribe(query protocol.Query, onEvent func(*protocol.Event)) *Future[*protocol.Subscribed] {
	c.mu.Lock()

	if err := c.readyLocked(); err != nil {
		c.mu.Unlock()
		c.metrics.RequestFailed(string(protocol.KindSubscribe))
		return failed[*protocol.Subscribed](err)
	}

	f := newFuture[*protocol.Subscribed]()

	req := expect(protocol.KindSubscribe, protocol.KindSubscribed, f)
	req.onEvent = onEvent

	send := c.beginLocked(&protocol.Subscribe{Query: query}, req)

	c.mu.Unlock()
	go send()

	return f
}

// IsConnected returns true between a successful Connect and the socket
// closing.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateReady, stateAwaiting, stateStreaming:
		return true
	default:
		return false
	}
}

// IsStreaming returns true once a subscription has been accepted.
func (c *Client) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state == stateStreaming
}

func (c *Client) readyLocked() error {
	switch c.state {
	case stateReady:
		return nil
	case stateConnecting, stateAwaiting:
		return ErrRequestInFlight
	case stateStreaming:
		return ErrStreaming
	default:
		return ErrNotConnected
	}
}

// beginLocked makes req the pending request and returns the function that
// sends msg. The send must run once c.mu is released and off the caller's
// goroutine: a server that stops reading holds it up until the write
// deadline, and Disconnect and the socket callbacks still need the lock
// meanwhile. Only one request is ever pending, so sends cannot reorder.
func (c *Client) beginLocked(msg protocol.Message, req *request) func() {
	line, err := protocol.Encode(msg)
	if err != nil {
		c.metrics.RequestFailed(string(req.kind))
		req.reject(err)
		return func() {}
	}

	c.pending = req
	c.state = stateAwaiting

	socket, session := c.socket, c.session

	return func() { c.send(session, socket, req, line) }
}

// send writes the line of req. A failure rejects req unless it was settled
// in the meantime, by Disconnect or by the socket closing.
func (c *Client) send(session uint64, socket transport.Socket, req *request, line []byte) {
	if err := socket.Send(line); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()

		if session == c.session && c.pending == req {
			c.rejectLocked(req, &TransportError{Err: err})
		}

		return
	}

	c.metrics.MessageSent(string(req.kind))
}

// rejectLocked settles req with err and moves the client out of the state
// that was waiting for it.
func (c *Client) rejectLocked(req *request, err error) {
	if c.pending == req {
		c.pending = nil
	}

	c.metrics.RequestFailed(string(req.kind))
	c.log.Warn("Request failed", zap.Stringer("request", req.kind), zap.Error(err))

	req.reject(err)

	switch c.state {
	case stateConnecting:
		// A session that failed to open is of no use, start over with Connect
		c.state = stateClosed
		c.closedByClient = true

		if c.socket != nil {
			if cerr := c.socket.Close(); cerr != nil {
				c.log.Warn("Failed to close socket", zap.Error(cerr))
			}
		}

	case stateAwaiting:
		c.state = stateReady
	}
}

func (c *Client) opened(session uint64) {
	c.mu.Lock()

	if session != c.session || c.state != stateConnecting || c.pending == nil {
		c.mu.Unlock()
		return
	}

	socket, req, line := c.socket, c.pending, c.connectLine
	c.mu.Unlock()

	c.send(session, socket, req, line)
}

func (c *Client) data(session uint64, chunk []byte) {
	c.mu.Lock()

	if session != c.session {
		c.mu.Unlock()
		return
	}

	lines, err := c.lines.Feed(chunk)
	if err != nil {
		c.metrics.LineDropped()
		c.log.Warn("Dropping oversized line", zap.Error(err))
	}

	// Callbacks run after the lock is released, in the order their lines
	// arrived
	var deliveries []func()

	for _, line := range lines {
		if deliver := c.handleLineLocked(line); deliver != nil {
			deliveries = append(deliveries, deliver)
		}
	}

	c.mu.Unlock()

	for _, deliver := range deliveries {
		deliver()
	}
}

func (c *Client) handleLineLocked(line []byte) func() {
	switch c.state {
	case stateConnecting, stateAwaiting:
		if len(line) > 0 && c.pending != nil {
			c.handleResponseLocked(line)
		}

		return nil

	case stateStreaming:
		return c.handleStreamLineLocked(line)

	default:
		if len(line) > 0 {
			c.metrics.LineDropped()
			c.log.Warn("Dropping unsolicited line",
				zap.Stringer("state", c.state),
				zap.ByteString("line", line))
		}

		return nil
	}
}

func (c *Client) handleResponseLocked(line []byte) {
	req := c.pending

	msg, err := protocol.Decode(line)
	if err != nil {
		c.rejectLocked(req, err)
		return
	}

	c.metrics.MessageReceived(string(msg.Kind()))

	if serverErr, ok := msg.(*protocol.Error); ok {
		c.rejectLocked(req, &ServerError{Request: req.kind, Reason: serverErr.Reason})
		return
	}

	if !req.resolve(msg) {
		c.rejectLocked(req, &protocol.ParseError{
			Kind:   req.expect,
			Line:   string(line),
			Reason: fmt.Sprintf("expected %s, got %s", req.expect, msg.Kind()),
		})
		return
	}

	c.pending = nil

	if msg.Kind() == protocol.KindSubscribed {
		c.state = stateStreaming
		c.onEvent = req.onEvent
		c.log.Info("Subscribed")
		return
	}

	c.state = stateReady
}

func (c *Client) handleStreamLineLocked(line []byte) func() {
	item, ok := protocol.DecodeStreamItem(line)
	if !ok {
		return nil
	}

	if item.Err != nil {
		// A bad line must not end the subscription
		c.metrics.LineDropped()
		c.log.Warn("Dropping malformed event",
			zap.ByteString("line", line),
			zap.Error(item.Err))
		return nil
	}

	onEvent := c.onEvent
	if onEvent == nil {
		return nil
	}

	event := item.Event
	if event != nil {
		c.metrics.MessageReceived(string(protocol.KindEvent))
		c.metrics.EventStreamed()
	}

	return func() { onEvent(event) }
}

func (c *Client) failed(session uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.session {
		return
	}

	c.log.Warn("Transport error", zap.Stringer("state", c.state), zap.Error(err))

	if c.pending != nil {
		c.rejectLocked(c.pending, &TransportError{Err: err})
	}
}

func (c *Client) closed(session uint64) {
	c.mu.Lock()

	if session != c.session {
		c.mu.Unlock()
		return
	}

	c.state = stateClosed
	c.lines.Reset()

	if c.pending != nil {
		req := c.pending
		c.pending = nil
		c.metrics.RequestFailed(string(req.kind))
		req.reject(ErrUnsolicitedClosure)
	}

	notify := !c.closedByClient && !c.closeNotified
	onClose := c.onClose

	if notify {
		c.closeNotified = true
		c.metrics.UnsolicitedClose()
		c.log.Warn("Connection closed by the server")
	}

	c.mu.Unlock()

	if notify && onClose != nil {
		onClose()
	}
}

// socketHandler routes the events of one socket to its client.
type socketHandler struct {
	client  *Client
	session uint64
}

func (h *socketHandler) Opened()          { h.client.opened(h.session) }
func (h *socketHandler) Data(data []byte) { h.client.data(h.session, data) }
func (h *socketHandler) Error(err error)  { h.client.failed(h.session, err) }
func (h *socketHandler) Closed()          { h.client.closed(h.session) }

var _ transport.Handler = (*socketHandler)(nil)
