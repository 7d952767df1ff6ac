package binio

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/eunmann/affxfusion/pkg/format"
)

// maxPrealloc bounds how many records are reserved up front when the input
// length is unknown. Longer lists grow as records are read.
const maxPrealloc = 1 << 14

// Reader reads little-endian records from a stream and tracks the absolute
// offset so errors can say where decoding stopped.
type Reader struct {
	r     io.Reader
	off   int64
	limit int64 // total input length, -1 when unknown
	buf   []byte
}

// NewReader wraps r. The stream is assumed to start at offset 0. The input
// length is known when r reports it through Len.
func NewReader(r io.Reader) *Reader {
	limit := int64(-1)
	if l, ok := r.(interface{ Len() int }); ok {
		limit = int64(l.Len())
	}
	return NewSizedReader(r, limit)
}

// NewSizedReader wraps r, which holds size bytes. A negative size means
// unknown.
func NewSizedReader(r io.Reader, size int64) *Reader {
	return &Reader{r: r, limit: size, buf: make([]byte, 0, 128)}
}

// Need fails with format.ErrTruncated when fewer than n bytes can be left
// in the input. It always passes when the length is unknown.
func (r *Reader) Need(n int64, what string) error {
	if n < 0 {
		return fmt.Errorf("%s: negative size %d: %w", what, n, format.ErrMalformed)
	}
	if r.limit >= 0 && n > r.limit-r.off {
		return fmt.Errorf("%s needs %d bytes at offset %d, input has %d: %w", what, n, r.off, r.limit, format.ErrTruncated)
	}
	return nil
}

// Prealloc returns the capacity to reserve for n records. It is n when the
// input length is known and has passed Need, otherwise at most maxPrealloc.
func (r *Reader) Prealloc(n int) int {
	if r.limit >= 0 {
		return n
	}
	return min(n, maxPrealloc)
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int64 {
	return r.off
}

// Record reads exactly n bytes. The returned slice is only valid until the
// next call.
func (r *Reader) Record(n int) ([]byte, error) {
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	b := r.buf[:n]
	got, err := io.ReadFull(r.r, b)
	r.off += int64(got)
	if err != nil {
		return nil, r.wrap(err, n)
	}
	return b, nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int64) error {
	got, err := io.CopyN(io.Discard, r.r, n)
	r.off += got
	if err != nil {
		return r.wrap(err, int(n))
	}
	return nil
}

// I32 reads a little-endian int32.
func (r *Reader) I32() (int32, error) {
	b, err := r.Record(4)
	if err != nil {
		return 0, err
	}
	return FromLittleEndianI32(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Record(4)
	if err != nil {
		return 0, err
	}
	return FromLittleEndianU32(b), nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Record(2)
	if err != nil {
		return 0, err
	}
	return FromLittleEndianU16(b), nil
}

// CString reads an int32 length followed by that many bytes.
func (r *Reader) CString() (string, error) {
	n, err := r.I32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("negative string length %d at offset %d: %w", n, r.off-4, format.ErrMalformed)
	}
	if n == 0 {
		return "", nil
	}
	if err := r.Need(int64(n), "string"); err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.Grow(r.Prealloc(int(n)))
	got, err := io.CopyN(&sb, r.r, int64(n))
	r.off += got
	if err != nil {
		return "", r.wrap(err, int(n))
	}
	return sb.String(), nil
}

// FixedString reads an n byte field and returns the text before the first NUL.
func (r *Reader) FixedString(n int) (string, error) {
	b, err := r.Record(n)
	if err != nil {
		return "", err
	}
	return TrimNUL(b), nil
}

func (r *Reader) wrap(err error, want int) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("reading %d bytes at offset %d: %w", want, r.off, format.ErrTruncated)
	}
	return fmt.Errorf("reading at offset %d: %w", r.off, err)
}

// TrimNUL returns the bytes of b before the first NUL as a string.
func TrimNUL(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
