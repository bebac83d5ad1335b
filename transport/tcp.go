package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// TCP opens TCP sockets.
type TCP struct {
	options Options
	log     *zap.Logger
}

func NewTCP(options Options) *TCP {
	options = options.withDefaults()

	return &TCP{
		options: options,
		log:     options.Log,
	}
}

// Open starts connecting to addr in the background and returns straight
// away. ctx only bounds the dial, cancelling it later does not close an
// open socket.
func (t *TCP) Open(ctx context.Context, addr string, handler Handler) Socket {
	conn := newTCPConn(addr, handler, t.options, t.log.Named("conn").With(zap.String("addr", addr)))

	go conn.run(ctx)

	return conn
}

type TCPConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	addr    string
	handler Handler
	options Options

	mu   sync.Mutex
	conn *net.TCPConn

	// writeMu serialises writes so a Send is never interleaved with another
	writeMu sync.Mutex

	// done is closed after Closed has been delivered
	done chan struct{}

	log *zap.Logger
}

func newTCPConn(addr string, handler Handler, options Options, log *zap.Logger) *TCPConn {
	ctx, cancel := context.WithCancel(context.Background())

	return &TCPConn{
		ctx:     ctx,
		cancel:  cancel,
		addr:    addr,
		handler: handler,
		options: options,
		done:    make(chan struct{}),
		log:     log,
	}
}

func (t *TCPConn) run(dialCtx context.Context) {
	defer close(t.done)
	defer t.handler.Closed()
	defer t.cancel()

	conn, err := t.dial(dialCtx)
	if err != nil {
		if t.isRunning() {
			t.log.Warn("Failed to connect", zap.Error(err))
			t.handler.Error(&Error{Op: "dial", Addr: t.addr, Err: err})
		}

		return
	}

	t.mu.Lock()
	if !t.isRunning() {
		// Closed while we were dialing
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.log.Info("Connected")
	t.handler.Opened()

	t.ReadLoop(conn)
}

func (t *TCPConn) dial(parentCtx context.Context) (*net.TCPConn, error) {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	// Close must be able to abort a dial in progress
	go func() {
		select {
		case <-t.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	d := net.Dialer{Timeout: t.options.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, err
	}

	return conn.(*net.TCPConn), nil
}

func (t *TCPConn) ReadLoop(conn *net.TCPConn) {
	log := t.log.Named("readLoop")

	defer func() {
		if err := t.closeConn(); err != nil {
			log.Warn("Failed to close connection cleanly", zap.Error(err))
		}

		log.Info("Read loop exited")
	}()

	buf := make([]byte, t.options.ReadBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)

			if t.options.Trace {
				log.Info("READ", zap.String("data", string(data)))
			}

			t.handler.Data(data)
		}

		if err == nil {
			continue
		}

		switch {
		case !t.isRunning():
			log.Info("Socket closed, exiting...")

		case errors.Is(err, io.EOF):
			log.Info("Server closed the connection")

		default:
			log.Warn("Failed to read from server", zap.Error(err))
			t.handler.Error(&Error{Op: "read", Addr: t.addr, Err: err})
		}

		return
	}
}

// Send writes data to the connection.
func (t *TCPConn) Send(data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil || !t.isRunning() {
		return ErrNotOpen
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.options.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(t.options.WriteTimeout)); err != nil {
			return &Error{Op: "write", Addr: t.addr, Err: err}
		}
	}

	if t.options.Trace {
		t.log.Info("WRITE", zap.String("data", string(data)))
	}

	if _, err := conn.Write(data); err != nil {
		return &Error{Op: "write", Addr: t.addr, Err: err}
	}

	return nil
}

// Close closes the connection, or aborts opening it. Closed is still
// delivered to the handler.
func (t *TCPConn) Close() error {
	if !t.isRunning() {
		// already stopped
		return nil
	}

	t.cancel()

	return t.closeConn()
}

// Done is closed once the handler has received Closed.
func (t *TCPConn) Done() <-chan struct{} {
	return t.done
}

func (t *TCPConn) closeConn() (err error) {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	// Let the server see a clean end of stream before the socket goes away
	if cerr := conn.CloseWrite(); cerr != nil && !isNotConnected(cerr) {
		err = multierr.Append(err, cerr)
	}

	if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = multierr.Append(err, cerr)
	}

	return err
}

// isRunning returns true if Close has not been called and the connection
// has not been lost
func (t *TCPConn) isRunning() bool {
	select {
	case <-t.ctx.Done():
		// if we can read on this channel then it's been closed
		return false

	default:
		return true
	}
}

func isNotConnected(err error) bool {
	return strings.Contains(err.Error(), "transport endpoint is not connected") ||
		errors.Is(err, net.ErrClosed)
}

var _ Opener = (*TCP)(nil)
var _ Socket = (*TCPConn)(nil)
