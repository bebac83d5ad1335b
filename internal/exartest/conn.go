package exartest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/exar/protocol"
	"github.com/luma/exar/storage"
)

var reasonReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

type serverConn struct {
	ctx    context.Context
	cancel context.CancelFunc

	server *Server
	conn   net.Conn

	writeMu sync.Mutex

	// Only touched by the read loop
	collection string
	connected  bool
	subscribed bool

	updates    <-chan *storage.Update
	liveWaiter sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	log *zap.Logger
}

func newServerConn(server *Server, conn net.Conn, log *zap.Logger) *serverConn {
	ctx, cancel := context.WithCancel(context.Background())

	return &serverConn{
		ctx:    ctx,
		cancel: cancel,
		server: server,
		conn:   conn,
		log:    log,
	}
}

// Serve reads requests until the connection closes.
func (c *serverConn) Serve() {
	defer func() {
		if err := c.Close(); err != nil {
			c.log.Debug("Connection did not close cleanly", zap.Error(err))
		}

		if c.updates != nil {
			c.server.store.StopListening(c.updates)
		}

		c.liveWaiter.Wait()
		c.log.Info("Connection closed")
	}()

	reader := bufio.NewReader(c.conn)

	for {
		msg, err := protocol.ReadMessage(reader)

		switch {
		case errors.Is(err, protocol.ErrMalformedMessage):
			c.log.Warn("Malformed request", zap.Error(err))
			c.reply(&protocol.Error{Reason: reason(err)})
			continue

		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			return

		case err != nil:
			c.log.Warn("Failed to read request", zap.Error(err))
			return
		}

		c.handle(msg)
	}
}

func (c *serverConn) handle(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.Connect:
		c.handleConnect(m)

	case *protocol.Publish:
		if !c.connected {
			c.reply(&protocol.Error{Reason: "Not connected"})
			return
		}

		id, err := c.server.Publish(c.ctx, c.collection, m.Event)
		if err != nil {
			c.reply(&protocol.Error{Reason: reason(err)})
			return
		}

		c.reply(&protocol.Published{ID: id})

	case *protocol.Subscribe:
		c.handleSubscribe(m.Query)

	default:
		c.reply(&protocol.Error{Reason: fmt.Sprintf("Unexpected %s", msg.Kind())})
	}
}

func (c *serverConn) handleConnect(m *protocol.Connect) {
	if c.connected {
		c.reply(&protocol.Error{Reason: "Already connected"})
		return
	}

	if !c.server.checkCredentials(m) {
		c.log.Info("Rejected credentials", zap.String("username", m.Username))
		c.reply(&protocol.Error{Reason: "Invalid credentials"})
		return
	}

	c.collection = m.Collection
	c.connected = true
	c.log = c.log.With(zap.String("collection", m.Collection))

	c.reply(&protocol.Connected{})
}

func (c *serverConn) handleSubscribe(query protocol.Query) {
	switch {
	case !c.connected:
		c.reply(&protocol.Error{Reason: "Not connected"})
		return

	case c.subscribed:
		c.reply(&protocol.Error{Reason: "Already subscribed"})
		return
	}

	key := collectionKey(c.collection)

	// Listen before reading the snapshot so no event falls between them
	var updates <-chan *storage.Update
	if query.Live {
		updates = c.server.store.ListenToUpdates()
	}

	raw, err := c.server.store.Get(c.ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		if updates != nil {
			c.server.store.StopListening(updates)
		}

		c.reply(&protocol.Error{Reason: reason(err)})
		return
	}

	c.subscribed = true
	c.reply(&protocol.Subscribed{})

	var sent uint64
	events := decodeEvents(raw)

	for position := range events {
		event := events[position]
		if query.Matches(&event, uint64(position), sent) {
			c.reply(&event)
			sent++
		}
	}

	if err := c.write(protocol.WriteEndOfEventStream); err != nil {
		c.log.Warn("Failed to end replay", zap.Error(err))
	}

	if updates == nil {
		return
	}

	if query.Limit > 0 && sent >= query.Limit {
		c.server.store.StopListening(updates)
		return
	}

	c.updates = updates
	c.liveWaiter.Add(1)

	go func() {
		defer c.liveWaiter.Done()
		c.streamLive(key, query, updates, len(events), sent)
	}()
}

// streamLive sends the events appended to key after the replay.
func (c *serverConn) streamLive(key []byte, query protocol.Query, updates <-chan *storage.Update, replayed int, sent uint64) {
	for update := range updates {
		if update.Index < replayed || !bytes.Equal(update.Key, key) {
			continue
		}

		event := decodeEvent(gjson.ParseBytes(update.Value))
		if !query.Matches(&event, uint64(update.Index), sent) {
			continue
		}

		c.reply(&event)
		sent++

		if query.Limit > 0 && sent >= query.Limit {
			if err := c.write(protocol.WriteEndOfEventStream); err != nil {
				c.log.Warn("Failed to end stream", zap.Error(err))
			}

			return
		}
	}
}

func (c *serverConn) reply(msg protocol.Message) {
	err := c.write(func(w io.Writer) error {
		return protocol.WriteMessage(w, msg)
	})

	if err != nil {
		c.log.Warn("Failed to reply", zap.Stringer("kind", msg.Kind()), zap.Error(err))
	}
}

func (c *serverConn) write(f func(w io.Writer) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return f(c.conn)
}

func (c *serverConn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.conn.Close()
	})

	return c.closeErr
}

// reason turns err into something that fits in a single field.
func reason(err error) string {
	return reasonReplacer.Replace(err.Error())
}
