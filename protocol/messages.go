package protocol

import (
	"strconv"
)

// Connect opens a session bound to a collection. Username and Password are
// only sent when at least one of them is set.
type Connect struct {
	Collection string
	Username   string
	Password   string
}

func (c *Connect) Kind() Kind {
	return KindConnect
}

func (c *Connect) Marshal() ([]byte, error) {
	if c.Username == "" && c.Password == "" {
		return marshalFields(KindConnect, c.Collection)
	}

	return marshalFields(KindConnect, c.Collection, c.Username, c.Password)
}

func (c *Connect) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindConnect, data, 1, 3)
	if err != nil {
		return err
	}

	switch len(fields) {
	case 1:
		*c = Connect{Collection: fields[0]}

	case 3:
		*c = Connect{Collection: fields[0], Username: fields[1], Password: fields[2]}

	default:
		return malformed(KindConnect, data, "credentials need both a username and a password")
	}

	return nil
}

// Connected acknowledges a Connect.
type Connected struct{}

func (c *Connected) Kind() Kind {
	return KindConnected
}

func (c *Connected) Marshal() ([]byte, error) {
	return marshalFields(KindConnected)
}

func (c *Connected) Unmarshal(data []byte) error {
	_, err := unmarshalFields(KindConnected, data, 0, 0)
	return err
}

// Publish appends Event to the collection. Only the data and tags of the
// event are sent, the server assigns the rest.
type Publish struct {
	Event Event
}

func (p *Publish) Kind() Kind {
	return KindPublish
}

// Publish\t<data>[\t<tag>...]
func (p *Publish) Marshal() ([]byte, error) {
	fields := make([]string, 0, 1+len(p.Event.Tags))
	fields = append(fields, p.Event.Data)
	fields = append(fields, p.Event.Tags...)

	return marshalFields(KindPublish, fields...)
}

func (p *Publish) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindPublish, data, 1, -1)
	if err != nil {
		return err
	}

	*p = Publish{Event: Event{
		Data: fields[0],
		Tags: tagsOrNil(fields[1:]),
	}}

	return nil
}

// Published acknowledges a Publish with the id the server assigned to the
// event.
type Published struct {
	ID uint64
}

func (p *Published) Kind() Kind {
	return KindPublished
}

func (p *Published) Marshal() ([]byte, error) {
	return marshalFields(KindPublished, strconv.FormatUint(p.ID, 10))
}

func (p *Published) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindPublished, data, 1, 1)
	if err != nil {
		return err
	}

	id, err := parseUint(KindPublished, data, "id", fields[0])
	if err != nil {
		return err
	}

	p.ID = id
	return nil
}

// Subscribe starts a subscription for the events matching Query.
type Subscribe struct {
	Query Query
}

func (s *Subscribe) Kind() Kind {
	return KindSubscribe
}

// Subscribe\t<live>\t<offset>\t<limit>\t<tag>
func (s *Subscribe) Marshal() ([]byte, error) {
	return marshalFields(KindSubscribe,
		strconv.FormatBool(s.Query.Live),
		strconv.FormatUint(s.Query.Offset, 10),
		strconv.FormatUint(s.Query.Limit, 10),
		s.Query.Tag)
}

func (s *Subscribe) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindSubscribe, data, 4, 4)
	if err != nil {
		return err
	}

	live, err := strconv.ParseBool(fields[0])
	if err != nil {
		return malformed(KindSubscribe, data, "live is not a boolean: '%s'", fields[0])
	}

	offset, err := parseUint(KindSubscribe, data, "offset", fields[1])
	if err != nil {
		return err
	}

	limit, err := parseUint(KindSubscribe, data, "limit", fields[2])
	if err != nil {
		return err
	}

	s.Query = Query{
		Live:   live,
		Offset: offset,
		Limit:  limit,
		Tag:    fields[3],
	}

	return nil
}

// Subscribed acknowledges a Subscribe. Every line after it is part of the
// event stream.
type Subscribed struct{}

func (s *Subscribed) Kind() Kind {
	return KindSubscribed
}

func (s *Subscribed) Marshal() ([]byte, error) {
	return marshalFields(KindSubscribed)
}

func (s *Subscribed) Unmarshal(data []byte) error {
	_, err := unmarshalFields(KindSubscribed, data, 0, 0)
	return err
}

// Error is sent by the server instead of the expected acknowledgement when
// it rejects a request.
type Error struct {
	Reason string
}

func (e *Error) Kind() Kind {
	return KindError
}

func (e *Error) Marshal() ([]byte, error) {
	return marshalFields(KindError, e.Reason)
}

func (e *Error) Unmarshal(data []byte) error {
	fields, err := unmarshalFields(KindError, data, 1, 1)
	if err != nil {
		return err
	}

	e.Reason = fields[0]
	return nil
}

var _ Message = (*Connect)(nil)
var _ Message = (*Connected)(nil)
var _ Message = (*Publish)(nil)
var _ Message = (*Published)(nil)
var _ Message = (*Subscribe)(nil)
var _ Message = (*Subscribed)(nil)
var _ Message = (*Event)(nil)
var _ Message = (*Error)(nil)
