package transport

import (
	"time"

	"go.uber.org/zap"
)

const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultReadBufferSize = 64 * 1024
)

type Options struct {
	// DialTimeout bounds how long opening a connection may take
	DialTimeout time.Duration

	// WriteTimeout bounds a single Send, defaults to DefaultWriteTimeout. A
	// negative value disables the deadline
	WriteTimeout time.Duration

	// ReadBufferSize is the size of the buffer each read fills
	ReadBufferSize int

	// Trace will log every chunk sent and received. This is only useful in local debugging
	Trace bool

	Log *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}

	switch {
	case o.WriteTimeout == 0:
		o.WriteTimeout = DefaultWriteTimeout
	case o.WriteTimeout < 0:
		// Disabled
		o.WriteTimeout = 0
	}

	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}

	if o.Log == nil {
		o.Log = zap.NewNop()
	}

	return o
}
