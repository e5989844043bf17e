package transport

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// LineBuffer frames a byte stream into newline-delimited lines.
// Bytes arrive in whatever chunks the network hands us; the buffer
// accumulates partial lines across chunks so the emitted sequence is
// identical no matter where the read boundaries fall.
//
// Not safe for concurrent use. Each connection owns exactly one.
type LineBuffer struct {
	buf []byte
}

// Feed appends a chunk and returns every complete line it unlocked, in
// arrival order. A line is the bytes before each '\n', with one trailing
// '\r' stripped when present. Empty lines are dropped. Invalid UTF-8 is
// decoded with the replacement rune rather than rejected.
func (b *LineBuffer) Feed(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx < 0 {
			return lines
		}
		raw := b.buf[:idx]
		if n := len(raw); n > 0 && raw[n-1] == '\r' {
			raw = raw[:n-1]
		}
		if len(raw) > 0 {
			lines = append(lines, decode(raw))
		}
		b.buf = b.buf[idx+1:]
	}
}

// Pending returns the number of buffered bytes not yet forming a line.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

// decode converts raw bytes to a string, substituting the Unicode
// replacement character for invalid sequences.
func decode(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}
