package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("Key not found")
	ErrNotArray = errors.New("Key does not hold an array")

	ErrInvalidJSON = errors.New("Values are not valid JSON")
)

// Update is sent to listeners whenever a key changes. Value is the raw JSON
// that was written: the new value for Set, the appended element for Append
// and nil for Delete.
type Update struct {
	Key   []byte
	Value []byte

	// Index is the position of the appended element, -1 for other updates
	Index int
}

// Store is a JSON document addressed by gjson paths. Use Key to build paths
// from arbitrary strings.
type Store interface {
	Set(ctx context.Context, key []byte, value interface{}) error
	Get(ctx context.Context, key []byte) ([]byte, error)
	Delete(ctx context.Context, key []byte) error

	// Append adds value at the end of the array at key, creating it if
	// needed, and returns the new length of the array.
	Append(ctx context.Context, key []byte, value interface{}) (int, error)

	// Len returns the length of the array at key, 0 if there is none.
	Len(ctx context.Context, key []byte) (int, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update
	StopListening(updates <-chan *Update)

	Close() error
}

// Key joins parts into a path, escaping every character that has a meaning
// in gjson paths.
func Key(parts ...string) []byte {
	var b strings.Builder

	for i, part := range parts {
		if i > 0 {
			b.WriteByte('.')
		}

		for _, r := range part {
			switch r {
			case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
				b.WriteByte('\\')
			}

			b.WriteRune(r)
		}
	}

	return []byte(b.String())
}
