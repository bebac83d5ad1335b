package protocol

import (
	"io"
)

var (
	Terminal = []byte{LineTerminator}

	endOfEventStreamLine = []byte(EndOfEventStream + "\n")
)

// Encode returns the line for m, including its terminator.
func Encode(m Message) ([]byte, error) {
	b, err := m.Marshal()
	if err != nil {
		return nil, err
	}

	return append(b, LineTerminator), nil
}

// WriteMessage encodes m and writes it to w as a single Write.
func WriteMessage(w io.Writer, m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	return err
}

// WriteEndOfEventStream writes the sentinel that closes an event batch.
func WriteEndOfEventStream(w io.Writer) error {
	_, err := w.Write(endOfEventStreamLine)
	return err
}
