package console

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/exar/client"
	"github.com/luma/exar/protocol"
	"github.com/luma/exar/storage"
)

type connectRequest struct {
	Collection string `json:"collection" binding:"required"`
}

type publishRequest struct {
	Data string `json:"data" binding:"required"`

	// Tags are separated by spaces
	Tags string `json:"tags"`
}

type subscribeRequest struct {
	Live   bool   `json:"live"`
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Tag    string `json:"tag"`
}

func (c *Console) createConnection(ctx *gin.Context) {
	var req connectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn := c.newConnection(req.Collection)

	waitCtx, cancel := context.WithTimeout(ctx.Request.Context(), RequestTimeout)
	defer cancel()

	connected, err := conn.client.Connect(waitCtx, req.Collection).Wait(waitCtx)
	if err != nil {
		conn.appendError(waitCtx, err)
		ctx.JSON(statusFor(err), gin.H{"id": conn.ID, "error": err.Error()})
		return
	}

	conn.appendMessage(waitCtx, connected)
	ctx.JSON(http.StatusCreated, conn.view())
}

func (c *Console) listConnections(ctx *gin.Context) {
	conns := c.list()

	views := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		views = append(views, conn.view())
	}

	ctx.JSON(http.StatusOK, views)
}

func (c *Console) deleteConnection(ctx *gin.Context) {
	conn, ok := c.remove(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	if err := conn.client.Disconnect(); err != nil {
		conn.log.Warn("Disconnect failed", zap.Error(err))
	}

	if err := c.store.Delete(ctx.Request.Context(), conn.key()); err != nil {
		conn.log.Warn("Failed to delete message log", zap.Error(err))
	}

	ctx.Status(http.StatusNoContent)
}

func (c *Console) publish(ctx *gin.Context) {
	conn, ok := c.lookup(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx.Request.Context(), RequestTimeout)
	defer cancel()

	event := protocol.NewEvent(req.Data, strings.Fields(req.Tags)...)

	published, err := conn.client.Publish(event).Wait(waitCtx)
	if err != nil {
		conn.appendError(waitCtx, err)
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	conn.appendMessage(waitCtx, published)
	ctx.JSON(http.StatusOK, gin.H{"id": published.ID})
}

func (c *Console) subscribe(ctx *gin.Context) {
	conn, ok := c.lookup(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	var req subscribeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx.Request.Context(), RequestTimeout)
	defer cancel()

	query := protocol.Query{
		Live:   req.Live,
		Offset: req.Offset,
		Limit:  req.Limit,
		Tag:    req.Tag,
	}

	if _, err := conn.client.Subscribe(query, conn.onEvent).Wait(waitCtx); err != nil {
		conn.appendError(waitCtx, err)
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	// Events may already have logged it
	conn.markSubscribed()

	ctx.JSON(http.StatusOK, conn.view())
}

func (c *Console) messages(ctx *gin.Context) {
	conn, ok := c.lookup(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	raw, err := c.store.Get(ctx.Request.Context(), conn.key())
	if errors.Is(err, storage.ErrNotFound) {
		raw = []byte("[]")
	} else if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

// exportMessages returns the message log of every connection, keyed by
// connection id.
func (c *Console) exportMessages(ctx *gin.Context) {
	raw, err := c.store.Backup()
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (c *Console) clearMessages(ctx *gin.Context) {
	conn, ok := c.lookup(ctx.Param("id"))
	if !ok {
		notFound(ctx)
		return
	}

	if err := c.store.Delete(ctx.Request.Context(), conn.key()); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func notFound(ctx *gin.Context) {
	ctx.JSON(http.StatusNotFound, gin.H{"error": "Unknown connection"})
}

// statusFor maps a client error onto the response status.
func statusFor(err error) int {
	var serverErr *client.ServerError

	switch {
	case errors.Is(err, client.ErrRequestInFlight),
		errors.Is(err, client.ErrStreaming),
		errors.Is(err, client.ErrNotConnected),
		errors.Is(err, client.ErrAlreadyConnected):
		return http.StatusConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.As(err, &serverErr):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusBadGateway
	}
}
