// Package console is an HTTP front end for Exar. Every connection opened
// through it gets an id and a message log that records what the server sent
// back, the log can be read in full or followed over a websocket.
package console

import (
	"context"
	"net/http"
	"sync"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/exar/client"
	"github.com/luma/exar/internal/metrics"
	"github.com/luma/exar/storage"
	"github.com/luma/exar/transport"
)

// RequestTimeout bounds how long a request waits for the server to answer
const RequestTimeout = 10 * time.Second

type Options struct {
	// ServerAddr is the Exar server every connection is opened to
	ServerAddr string
	Username   string
	Password   string

	// Opener defaults to a transport.TCP
	Opener transport.Opener

	// Store keeps the message logs, defaults to a new storage.InmemoryStore
	Store storage.Store

	// Registry receives the client metrics and is served on /metrics,
	// defaults to a new registry
	Registry *prometheus.Registry

	// DebugHTTP runs gin in debug mode
	DebugHTTP bool

	Log *zap.Logger
}

type Console struct {
	options Options
	store   storage.Store
	metrics *metrics.Client
	router  *gin.Engine

	mu    sync.Mutex
	conns map[string]*connection

	// order is the ids of conns by creation
	order []string

	log *zap.Logger
}

func New(options Options) *Console {
	if options.Store == nil {
		options.Store = storage.NewInmemoryStore()
	}

	if options.Registry == nil {
		options.Registry = prometheus.NewRegistry()
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Opener == nil {
		options.Opener = transport.NewTCP(transport.Options{
			Log: options.Log.Named("transport"),
		})
	}

	c := &Console{
		options: options,
		store:   options.Store,
		metrics: metrics.NewClient(options.Registry),
		conns:   make(map[string]*connection),
		log:     options.Log,
	}

	c.router = c.setupRouter()

	return c
}

// Handler serves the console API.
func (c *Console) Handler() http.Handler {
	return c.router
}

// Close disconnects every connection.
func (c *Console) Close() error {
	c.mu.Lock()
	conns := make([]*connection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.conns = make(map[string]*connection)
	c.order = nil
	c.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.client.Disconnect())
	}

	return err
}

func (c *Console) setupRouter() *gin.Engine {
	gin.DisableConsoleColor()
	if !c.options.DebugHTTP {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Add a ginzap middleware, which:
	//   - Logs all requests, like a combined access and error log.
	//   - RFC3339 with UTC time format.
	r.Use(ginzap.GinzapWithConfig(c.log.Named("http"), &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/ping", "/metrics"},
	}))

	// Logs all panic to error log
	//   - stack means whether output the stack info.
	r.Use(ginzap.RecoveryWithZap(c.log, true))

	r.GET("/ping", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "pong")
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.options.Registry, promhttp.HandlerOpts{})))

	r.GET("/messages", c.exportMessages)

	connections := r.Group("/connections")
	connections.POST("", c.createConnection)
	connections.GET("", c.listConnections)
	connections.DELETE("/:id", c.deleteConnection)
	connections.POST("/:id/publish", c.publish)
	connections.POST("/:id/subscribe", c.subscribe)
	connections.GET("/:id/messages", c.messages)
	connections.DELETE("/:id/messages", c.clearMessages)
	connections.GET("/:id/stream", c.stream)

	return r
}

func (c *Console) newConnection(collection string) *connection {
	conn := &connection{
		ID:         uuid.NewString(),
		Collection: collection,
		store:      c.store,
		log:        c.log.With(zap.String("collection", collection)),
	}

	conn.client = client.New(client.Options{
		Addr:     c.options.ServerAddr,
		Username: c.options.Username,
		Password: c.options.Password,
		Opener:   c.options.Opener,
		Log:      c.log.Named("client"),
		Metrics:  c.metrics,
	})

	conn.client.OnClose(func() {
		conn.append(context.Background(), "Disconnected")
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	c.conns[conn.ID] = conn
	c.order = append(c.order, conn.ID)

	return conn
}

func (c *Console) lookup(id string) (*connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[id]
	return conn, ok
}

func (c *Console) remove(id string) (*connection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, ok := c.conns[id]
	if !ok {
		return nil, false
	}

	delete(c.conns, id)

	for i, other := range c.order {
		if other == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return conn, true
}

func (c *Console) list() []*connection {
	c.mu.Lock()
	defer c.mu.Unlock()

	conns := make([]*connection, 0, len(c.order))
	for _, id := range c.order {
		conns = append(conns, c.conns[id])
	}

	return conns
}
