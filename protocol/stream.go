package protocol

import (
	"bytes"
)

// StreamItem is one line of an event batch. Exactly one of Event, End and
// Err is set.
type StreamItem struct {
	Event *Event
	End   bool
	Err   error
}

// DecodeStreamItem decodes a line received while a subscription is
// streaming. The sentinel is checked before anything else. ok is false for
// an empty line, which carries nothing.
func DecodeStreamItem(line []byte) (item StreamItem, ok bool) {
	line = RemoveTrailingCR(bytes.TrimSuffix(line, Terminal))

	switch {
	case len(line) == 0:
		return StreamItem{}, false

	case string(line) == EndOfEventStream:
		return StreamItem{End: true}, true
	}

	e := &Event{}
	if err := e.Unmarshal(line); err != nil {
		return StreamItem{Err: err}, true
	}

	return StreamItem{Event: e}, true
}

// DecodeEventBatch splits batch on newlines and decodes every line on its
// own. Empty lines are skipped and a malformed line does not affect the
// lines around it.
func DecodeEventBatch(batch []byte) []StreamItem {
	lines := bytes.Split(batch, Terminal)
	items := make([]StreamItem, 0, len(lines))

	for _, line := range lines {
		if item, ok := DecodeStreamItem(line); ok {
			items = append(items, item)
		}
	}

	return items
}
