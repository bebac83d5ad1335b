// Package exartest runs an Exar server in process for tests. It speaks the
// real protocol over loopback TCP and keeps its collections in a
// storage.Store.
package exartest

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/exar/protocol"
	"github.com/luma/exar/storage"
)

type Options struct {
	// Username and Password are required from every Connect when either is
	// set
	Username string
	Password string

	// Store holds the collections, defaults to a new storage.InmemoryStore
	Store storage.Store

	// Snapshot, when set, is restored into Store before accepting
	// connections. It is the JSON a previous Server.Snapshot returned.
	Snapshot []byte

	// Now stamps published events, defaults to time.Now
	Now func() time.Time

	Log *zap.Logger
}

// Server accepts Exar connections on a random loopback port.
type Server struct {
	listener net.Listener
	options  Options
	store    storage.Store

	// publishMu makes reading the next id and appending the event atomic
	publishMu sync.Mutex

	mu    sync.Mutex
	conns map[*serverConn]struct{}

	connWaiter sync.WaitGroup
	acceptDone chan struct{}
	closeOnce  sync.Once

	log *zap.Logger
}

// Start listens on 127.0.0.1 and starts accepting connections.
func Start(options Options) (*Server, error) {
	if options.Store == nil {
		options.Store = storage.NewInmemoryStore()
	}

	if options.Now == nil {
		options.Now = time.Now
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	if options.Snapshot != nil {
		if err := options.Store.Restore(options.Snapshot); err != nil {
			return nil, err
		}
	}

	listener, err := reuseport.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener:   listener,
		options:    options,
		store:      options.Store,
		conns:      make(map[*serverConn]struct{}),
		acceptDone: make(chan struct{}),
		log:        options.Log.Named("exartest"),
	}

	go s.acceptLoop()

	s.log.Info("Listening", zap.String("addr", s.Addr()))

	return s, nil
}

// Addr is the host:port clients should connect to.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Store returns the store holding the collections.
func (s *Server) Store() storage.Store {
	return s.store
}

// Snapshot returns every collection as JSON, to start another Server from.
func (s *Server) Snapshot() ([]byte, error) {
	return s.store.Backup()
}

// Events returns every event published to collection, in order.
func (s *Server) Events(ctx context.Context, collection string) ([]protocol.Event, error) {
	raw, err := s.store.Get(ctx, collectionKey(collection))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return decodeEvents(raw), nil
}

// Publish appends an event to collection as if a client had published it.
func (s *Server) Publish(ctx context.Context, collection string, event protocol.Event) (uint64, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	key := collectionKey(collection)

	length, err := s.store.Len(ctx, key)
	if err != nil {
		return 0, err
	}

	event.ID = uint64(length) + 1
	event.Timestamp = uint64(s.options.Now().UnixMilli())

	if _, err := s.store.Append(ctx, key, toStoredEvent(event)); err != nil {
		return 0, err
	}

	return event.ID, nil
}

// Hangup closes every open connection without closing the listener.
func (s *Server) Hangup() error {
	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	var err error
	for _, conn := range conns {
		err = multierr.Append(err, conn.Close())
	}

	return err
}

// Connections returns the number of open connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

// Close stops accepting, closes every connection and waits for them to
// finish.
func (s *Server) Close() (err error) {
	s.closeOnce.Do(func() {
		s.log.Info("Stopping")

		err = multierr.Append(err, s.listener.Close())
		<-s.acceptDone

		err = multierr.Append(err, s.Hangup())
		s.connWaiter.Wait()

		s.log.Info("Stopped")
	})

	return err
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Error("Failed to accept", zap.Error(err))
			}

			return
		}

		sc := newServerConn(s, conn, s.log.Named("conn").With(zap.Stringer("remote", conn.RemoteAddr())))
		s.addConn(sc)

		s.connWaiter.Add(1)
		go func() {
			defer s.connWaiter.Done()
			defer s.removeConn(sc)

			sc.Serve()
		}()
	}
}

func (s *Server) addConn(conn *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conns[conn] = struct{}{}
}

func (s *Server) removeConn(conn *serverConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, conn)
}

func (s *Server) checkCredentials(connect *protocol.Connect) bool {
	if s.options.Username == "" && s.options.Password == "" {
		return true
	}

	return connect.Username == s.options.Username && connect.Password == s.options.Password
}
