package storage

import (
	"context"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UpdateBufferSize is the number of updates a listener can fall behind by.
// Updates to a listener whose buffer is full are dropped.
const UpdateBufferSize = 255

type InmemoryStore struct {
	valuesMu sync.RWMutex
	values   []byte

	mu          sync.Mutex
	updateChans []chan *Update

	// stop willl be closed when Close() is called
	stop chan struct{}
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
	}
}

func (i *InmemoryStore) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return nil
	}

	close(i.stop)

	for _, updateChan := range i.updateChans {
		close(updateChan)
	}
	i.updateChans = nil

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, key []byte, value interface{}) error {
	i.valuesMu.Lock()
	defer i.valuesMu.Unlock()

	values, err := sjson.SetBytes(i.values, string(key), value)
	if err != nil {
		return err
	}

	i.values = values

	// Published under valuesMu so listeners see updates in write order
	i.publish(&Update{
		Key:   key,
		Value: []byte(gjson.GetBytes(i.values, string(key)).Raw),
		Index: -1,
	})

	return nil
}

func (i *InmemoryStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	result := gjson.GetBytes(i.values, string(key))
	if !result.Exists() {
		return nil, ErrNotFound
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryStore) Delete(ctx context.Context, key []byte) error {
	i.valuesMu.Lock()
	defer i.valuesMu.Unlock()

	values, err := sjson.DeleteBytes(i.values, string(key))
	if err != nil {
		return err
	}

	i.values = values
	i.publish(&Update{Key: key, Index: -1})

	return nil
}

func (i *InmemoryStore) Append(ctx context.Context, key []byte, value interface{}) (int, error) {
	i.valuesMu.Lock()
	defer i.valuesMu.Unlock()

	path := string(key)

	if current := gjson.GetBytes(i.values, path); current.Exists() && !current.IsArray() {
		return 0, ErrNotArray
	}

	values, err := sjson.SetBytes(i.values, path+".-1", value)
	if err != nil {
		return 0, err
	}

	i.values = values

	length := int(gjson.GetBytes(i.values, path+".#").Int())
	i.publish(&Update{
		Key:   key,
		Value: []byte(gjson.GetBytes(i.values, path+"."+strconv.Itoa(length-1)).Raw),
		Index: length - 1,
	})

	return length, nil
}

func (i *InmemoryStore) Len(ctx context.Context, key []byte) (int, error) {
	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	result := gjson.GetBytes(i.values, string(key))
	if !result.Exists() {
		return 0, nil
	}

	if !result.IsArray() {
		return 0, ErrNotArray
	}

	return int(gjson.GetBytes(i.values, string(key)+".#").Int()), nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)

	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

// StopListening closes a channel returned by ListenToUpdates.
func (i *InmemoryStore) StopListening(updates <-chan *Update) {
	i.mu.Lock()
	defer i.mu.Unlock()

	for n, updateChan := range i.updateChans {
		if updateChan == updates {
			close(updateChan)
			i.updateChans = append(i.updateChans[:n], i.updateChans[n+1:]...)
			return
		}
	}
}

func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return ErrInvalidJSON
	}

	i.valuesMu.Lock()
	defer i.valuesMu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryStore) Backup() ([]byte, error) {
	i.valuesMu.RLock()
	defer i.valuesMu.RUnlock()

	if len(i.values) == 0 {
		return []byte("{}"), nil
	}

	return append([]byte(nil), i.values...), nil
}

func (i *InmemoryStore) publish(update *Update) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return
	}

	for _, updateChan := range i.updateChans {
		select {
		case updateChan <- update:
		default:
			// The listener is not keeping up
		}
	}
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
