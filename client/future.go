package client

import (
	"context"
	"errors"
	"sync"
)

// ErrPending is returned by Future.Result while the future has not settled.
var ErrPending = errors.New("Result is not available yet")

// Future is the eventual result of an operation. It settles exactly once,
// either with a value or with an error.
type Future[T any] struct {
	done chan struct{}
	once sync.Once

	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// failed returns a future that is already rejected with err.
func failed[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.reject(err)
	return f
}

func (f *Future[T]) resolve(value T) {
	f.once.Do(func() {
		f.value = value
		close(f.done)
	})
}

func (f *Future[T]) reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the value or the error the future settled with, or
// ErrPending if it has not settled yet.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err

	default:
		var zero T
		return zero, ErrPending
	}
}

// Wait blocks until the future settles or ctx is done. Giving up on the
// wait does not cancel the request, its response is still consumed when it
// arrives.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err

	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
