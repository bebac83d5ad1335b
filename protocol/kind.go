package protocol

// Kind is the keyword in the first field of every line, it identifies
// which message the rest of the line encodes.
type Kind string

const (
	KindConnect    Kind = "Connect"
	KindConnected  Kind = "Connected"
	KindPublish    Kind = "Publish"
	KindPublished  Kind = "Published"
	KindSubscribe  Kind = "Subscribe"
	KindSubscribed Kind = "Subscribed"
	KindEvent      Kind = "Event"
	KindError      Kind = "Error"
)

// EndOfEventStream is sent by the server after the last event of a batch.
// It is not a message and carries no fields.
const EndOfEventStream = "EndOfEventStream"

const (
	// FieldSeparator separates the fields of a line
	FieldSeparator = '\t'

	// LineTerminator ends every line
	LineTerminator = '\n'
)

// kinds is the closed set of message kinds the codec understands.
var kinds = map[Kind]func() Message{
	KindConnect:    func() Message { return &Connect{} },
	KindConnected:  func() Message { return &Connected{} },
	KindPublish:    func() Message { return &Publish{} },
	KindPublished:  func() Message { return &Published{} },
	KindSubscribe:  func() Message { return &Subscribe{} },
	KindSubscribed: func() Message { return &Subscribed{} },
	KindEvent:      func() Message { return &Event{} },
	KindError:      func() Message { return &Error{} },
}

// Known returns true if k is one of the message kinds of the protocol.
func (k Kind) Known() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) String() string {
	return string(k)
}
