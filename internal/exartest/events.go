package exartest

import (
	"github.com/tidwall/gjson"

	"github.com/luma/exar/protocol"
	"github.com/luma/exar/storage"
)

// storedEvent is how an event is kept in the store.
type storedEvent struct {
	ID        uint64   `json:"id"`
	Timestamp uint64   `json:"timestamp"`
	Data      string   `json:"data"`
	Tags      []string `json:"tags,omitempty"`
}

func toStoredEvent(e protocol.Event) storedEvent {
	return storedEvent{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Data:      e.Data,
		Tags:      e.Tags,
	}
}

func decodeEvent(result gjson.Result) protocol.Event {
	var tags []string
	for _, tag := range result.Get("tags").Array() {
		tags = append(tags, tag.String())
	}

	return protocol.Event{
		ID:        result.Get("id").Uint(),
		Timestamp: result.Get("timestamp").Uint(),
		Data:      result.Get("data").String(),
		Tags:      tags,
	}
}

func decodeEvents(raw []byte) []protocol.Event {
	results := gjson.ParseBytes(raw).Array()

	events := make([]protocol.Event, 0, len(results))
	for _, result := range results {
		events = append(events, decodeEvent(result))
	}

	return events
}

func collectionKey(collection string) []byte {
	return storage.Key("collections", collection)
}
