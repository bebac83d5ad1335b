package protocol

import (
	"bytes"
)

// MaxLineLength bounds how much LineBuffer holds while waiting for a line
// terminator.
const MaxLineLength = 1 << 20

// LineBuffer reassembles lines from chunks read off a stream. A single read
// can hold several lines, or only part of one.
type LineBuffer struct {
	buf []byte

	// discarding is set while skipping the rest of an oversized line
	discarding bool
}

// Feed appends chunk and returns every line it completed, without their
// terminators. The returned slices are only valid until the next call.
//
// If the pending partial line grows past MaxLineLength it is discarded and
// ErrLineTooLong is returned along with the lines completed before it. The
// rest of that line is skipped as it arrives, up to and including its
// terminator.
func (l *LineBuffer) Feed(chunk []byte) ([][]byte, error) {
	if l.discarding {
		i := bytes.IndexByte(chunk, LineTerminator)
		if i < 0 {
			return nil, nil
		}

		l.discarding = false
		chunk = chunk[i+1:]
	}

	l.buf = append(l.buf, chunk...)

	var lines [][]byte
	rest := l.buf

	for {
		i := bytes.IndexByte(rest, LineTerminator)
		if i < 0 {
			break
		}

		lines = append(lines, RemoveTrailingCR(rest[:i]))
		rest = rest[i+1:]
	}

	if len(rest) > MaxLineLength {
		l.buf = l.buf[:0]
		l.discarding = true
		return lines, ErrLineTooLong
	}

	// Keep the partial line for the next read. The completed lines still
	// point into the old buffer so the remainder is copied out.
	l.buf = append([]byte(nil), rest...)

	return lines, nil
}

// Pending returns the number of buffered bytes that do not form a complete
// line yet.
func (l *LineBuffer) Pending() int {
	return len(l.buf)
}

// Reset drops any partial line.
func (l *LineBuffer) Reset() {
	l.buf = nil
	l.discarding = false
}
