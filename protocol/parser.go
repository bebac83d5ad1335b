package protocol

import (
	"bufio"
	"bytes"
)

// Decode parses a single line into the message named by its first field.
//
// The line may or may not end with its terminator. Empty lines and the
// EndOfEventStream sentinel are not messages and are reported as malformed,
// callers reading an event stream should use DecodeStreamItem instead.
func Decode(line []byte) (Message, error) {
	line = RemoveTrailingCR(bytes.TrimSuffix(line, []byte{LineTerminator}))

	if len(line) == 0 {
		return nil, malformed("", line, "empty line")
	}

	kind := line
	if i := bytes.IndexByte(line, FieldSeparator); i >= 0 {
		kind = line[:i]
	}

	newMessage, ok := kinds[Kind(kind)]
	if !ok {
		return nil, malformed("", line, "unknown message kind '%s'", string(kind))
	}

	msg := newMessage()
	if err := msg.Unmarshal(line); err != nil {
		return nil, err
	}

	return msg, nil
}

// ReadMessage reads the next line from r and decodes it. Empty lines are
// skipped.
//
// To avoid denial of service attacks, the provided bufio.Reader
// should be reading from an io.LimitReader or similar Reader to bound
// the size of lines.
func ReadMessage(r *bufio.Reader) (Message, error) {
	for {
		line, err := r.ReadBytes(LineTerminator)
		if err != nil {
			return nil, err
		}

		line = RemoveTrailingCR(line[:len(line)-1])
		if len(line) == 0 {
			continue
		}

		return Decode(line)
	}
}

func RemoveTrailingCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		// Remove the optional trailing \r
		return data[:len(data)-1]
	}

	return data
}
