package protocol

import (
	"bytes"
	"strconv"
	"strings"
)

type Marshaler interface {
	// Marshal returns the tab separated form of the message, without the
	// line terminator.
	Marshal() ([]byte, error)
}

type Unmarshaler interface {
	// Unmarshal parses a single line, with or without its terminator.
	Unmarshal(data []byte) error
}

// Message is implemented by every request and response of the protocol.
type Message interface {
	Kind() Kind

	Marshaler
	Unmarshaler
}

// marshalFields joins the kind and the fields into a single line.
func marshalFields(kind Kind, fields ...string) ([]byte, error) {
	size := len(kind)
	for _, f := range fields {
		if strings.ContainsAny(f, "\t\r\n") {
			return nil, &FieldError{Kind: kind, Value: f}
		}

		size += len(f) + 1
	}

	b := make([]byte, 0, size)
	b = append(b, kind...)

	for _, f := range fields {
		b = append(b, FieldSeparator)
		b = append(b, f...)
	}

	return b, nil
}

// unmarshalFields splits a line into its fields and checks that the first
// one is the expected kind and that the number of remaining fields is within
// [min, max]. A negative max means there is no upper bound.
func unmarshalFields(kind Kind, data []byte, min, max int) ([]string, error) {
	line := RemoveTrailingCR(bytes.TrimSuffix(data, []byte{LineTerminator}))

	fields := strings.Split(string(line), string(FieldSeparator))
	if Kind(fields[0]) != kind {
		return nil, malformed(kind, line, "expected kind %s, got '%s'", kind, fields[0])
	}

	fields = fields[1:]
	if len(fields) < min || (max >= 0 && len(fields) > max) {
		return nil, malformed(kind, line, "unexpected number of fields %d", len(fields))
	}

	return fields, nil
}

func parseUint(kind Kind, line []byte, name, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, malformed(kind, line, "%s is not an unsigned integer: '%s'", name, value)
	}

	return n, nil
}

// FieldError is returned when a message cannot be marshalled because one of
// its fields contains a framing character.
type FieldError struct {
	Kind  Kind
	Value string
}

func (e *FieldError) Error() string {
	return "Cannot marshal " + string(e.Kind) + ": field " + strconv.Quote(e.Value) + " contains a tab or newline"
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidField
}
