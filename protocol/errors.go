package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMessage is wrapped by every error returned when a line
	// cannot be parsed into the message kind it claims to be.
	ErrMalformedMessage = errors.New("Malformed message")

	// ErrInvalidField is returned when encoding a field that contains a
	// tab, carriage return or newline. Those bytes frame the protocol and
	// cannot appear inside a field.
	ErrInvalidField = errors.New("Field contains a framing character")

	// ErrLineTooLong is returned by LineBuffer when a line grows past
	// MaxLineLength without a terminator.
	ErrLineTooLong = errors.New("Line is longer than the maximum line length")
)

// ParseError describes why a line could not be decoded.
type ParseError struct {
	Kind   Kind
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("Failed to parse '%s': %s", e.Line, e.Reason)
	}

	return fmt.Sprintf("Failed to parse %s '%s': %s", e.Kind, e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedMessage
}

func malformed(kind Kind, line []byte, format string, args ...interface{}) error {
	return &ParseError{
		Kind:   kind,
		Line:   string(line),
		Reason: fmt.Sprintf(format, args...),
	}
}
