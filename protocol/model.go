package protocol

import (
	"strconv"
)

// Event is a payload with a set of tags. Publishers build events with
// NewEvent, the server fills in ID and Timestamp when it replays them.
type Event struct {
	ID        uint64
	Timestamp uint64
	Data      string

	// Tags is nil when the event has no tags
	Tags []string
}

// NewEvent returns an Event with a copy of tags.
func NewEvent(data string, tags ...string) Event {
	e := Event{Data: data}
	if len(tags) > 0 {
		e.Tags = append([]string(nil), tags...)
	}

	return e
}

// HasTag returns true if the event carries tag. The empty tag matches every
// event.
func (e *Event) HasTag(tag string) bool {
	if tag == "" {
		return true
	}

	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}

	return false
}

func (e *Event) Kind() Kind {
	return KindEvent
}

// Event\t<id>\t<timestamp>\t<data>[\t<tag>...]
func (e *Event) Marshal() ([]byte, error) {
	fields := make([]string, 0, 3+len(e.Tags))
	fields = append(fields,
		strconv.FormatUint(e.ID, 10),
		strconv.FormatUint(e.Timestamp, 10),
		e.Data)
	fields = append(fields, e.Tags...)

	return marshalFields(KindEvent, fields...)
}

func (e *Event) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindEvent, data, 3, -1)
	if err != nil {
		return err
	}

	id, err := parseUint(KindEvent, data, "id", fields[0])
	if err != nil {
		return err
	}

	timestamp, err := parseUint(KindEvent, data, "timestamp", fields[1])
	if err != nil {
		return err
	}

	*e = Event{
		ID:        id,
		Timestamp: timestamp,
		Data:      fields[2],
		Tags:      tagsOrNil(fields[3:]),
	}

	return nil
}

// Query selects the events a subscription replays and, when Live is set,
// keeps receiving as they are published.
type Query struct {
	Live bool

	// Offset is the position of the first event to replay
	Offset uint64

	// Limit is the maximum number of events, 0 means no limit
	Limit uint64

	// Tag only matches events carrying it, empty matches everything
	Tag string
}

// LiveQuery replays every event and keeps the subscription open for new
// ones.
func LiveQuery() Query {
	return Query{Live: true}
}

// CurrentQuery replays every event published so far.
func CurrentQuery() Query {
	return Query{}
}

// Matches returns true if event should be sent to a subscription with this
// query. position is the zero based position of event in its collection,
// sent is how many events were already sent to the subscription.
func (q Query) Matches(event *Event, position, sent uint64) bool {
	if position < q.Offset {
		return false
	}

	if q.Limit > 0 && sent >= q.Limit {
		return false
	}

	return event.HasTag(q.Tag)
}

func tagsOrNil(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	return append([]string(nil), tags...)
}
