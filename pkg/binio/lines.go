package binio

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// LineReader reads the INI-like text encodings. Lines are returned without
// their terminator or a trailing carriage return. Bytes that are not valid
// UTF-8 are decoded as Windows-1252, which is what the legacy tools wrote.
type LineReader struct {
	r    *bufio.Reader
	line int
	err  error
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Line returns the 1-based number of the last line returned.
func (l *LineReader) Line() int {
	return l.line
}

// Err returns the first non-EOF read error.
func (l *LineReader) Err() error {
	return l.err
}

// Raw returns the next line, empty or not. ok is false at end of input.
func (l *LineReader) Raw() (string, bool) {
	if l.err != nil {
		return "", false
	}
	s, err := l.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.err = err
			return "", false
		}
		if s == "" {
			return "", false
		}
	}
	l.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return decodeLegacy(s), true
}

// Next returns the next non-empty line.
func (l *LineReader) Next() (string, bool) {
	for {
		s, ok := l.Raw()
		if !ok {
			return "", false
		}
		if s != "" {
			return s, true
		}
	}
}

// SkipTo advances past the first line starting with prefix.
func (l *LineReader) SkipTo(prefix string) bool {
	for {
		s, ok := l.Raw()
		if !ok {
			return false
		}
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
}

func decodeLegacy(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// Value returns the text after the first '=' of line, or ok=false when
// line does not start with key followed by '='.
func Value(line, key string) (string, bool) {
	if !strings.HasPrefix(line, key) {
		return "", false
	}
	rest := line[len(key):]
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	return rest[1:], true
}
