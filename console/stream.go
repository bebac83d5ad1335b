package console

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a line to the peer
	writeWait = 10 * time.Second

	// maxMessageSize is the largest message accepted from the peer, it only
	// ever sends close frames
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stream pushes every line appended to a connection's message log to a
// websocket, as a text message per line.
func (c *Console) stream(ctx *gin.Context) {
	conn, ok := c.lookup(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	// Listen before upgrading so nothing logged after the handshake is missed
	updates := c.store.ListenToUpdates()
	defer c.store.StopListening(updates)

	ws, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		conn.log.Warn("Failed to upgrade to websocket", zap.Error(err))
		return
	}

	defer ws.Close()

	// The read loop only notices the peer going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)

		ws.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	key := conn.key()

	for {
		select {
		case <-gone:
			return

		case update, ok := <-updates:
			if !ok {
				return
			}

			if update.Index < 0 || !bytes.Equal(update.Key, key) {
				continue
			}

			line := gjson.ParseBytes(update.Value).String()

			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				conn.log.Debug("Websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
