package console

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/luma/exar/client"
	"github.com/luma/exar/protocol"
	"github.com/luma/exar/storage"
)

// connection is one client opened through the console together with its
// message log.
type connection struct {
	ID         string
	Collection string

	client *client.Client
	store  storage.Store

	// subscribed logs Subscribed once, before the first event
	subscribed sync.Once

	log *zap.Logger
}

type connectionView struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Connected  bool   `json:"connected"`
	Streaming  bool   `json:"streaming"`
}

func (c *connection) view() connectionView {
	return connectionView{
		ID:         c.ID,
		Collection: c.Collection,
		Connected:  c.client.IsConnected(),
		Streaming:  c.client.IsStreaming(),
	}
}

func (c *connection) key() []byte {
	return messagesKey(c.ID)
}

func messagesKey(id string) []byte {
	return storage.Key(id, "messages")
}

// append adds line to the message log.
func (c *connection) append(ctx context.Context, line string) {
	if _, err := c.store.Append(ctx, c.key(), line); err != nil {
		c.log.Warn("Failed to log message", zap.String("line", line), zap.Error(err))
	}
}

func (c *connection) appendMessage(ctx context.Context, msg protocol.Message) {
	line, err := msg.Marshal()
	if err != nil {
		c.appendError(ctx, err)
		return
	}

	c.append(ctx, string(line))
}

func (c *connection) appendError(ctx context.Context, err error) {
	c.append(ctx, "Error: "+err.Error())
}

func (c *connection) markSubscribed() {
	c.subscribed.Do(func() {
		c.append(context.Background(), string(protocol.KindSubscribed))
	})
}

// onEvent logs the events of a subscription. nil ends a batch.
func (c *connection) onEvent(event *protocol.Event) {
	c.markSubscribed()

	if event == nil {
		c.append(context.Background(), protocol.EndOfEventStream)
		return
	}

	c.appendMessage(context.Background(), event)
}
