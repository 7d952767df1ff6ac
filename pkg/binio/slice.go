package binio

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/format"
)

// Span returns data[off:off+n] after checking that the range lies inside
// data. It is the only way mapped decoders touch the arena.
func Span(data []byte, off int64, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > int64(len(data)) || int64(len(data))-off < int64(n) {
		return nil, fmt.Errorf("range [%d,+%d) outside %d byte mapping: %w", off, n, len(data), format.ErrTruncated)
	}
	return data[off : off+int64(n)], nil
}

// I32At decodes a little-endian int32 at off.
func I32At(data []byte, off int64) (int32, error) {
	b, err := Span(data, off, 4)
	if err != nil {
		return 0, err
	}
	return FromLittleEndianI32(b), nil
}

// U16At decodes a little-endian uint16 at off.
func U16At(data []byte, off int64) (uint16, error) {
	b, err := Span(data, off, 2)
	if err != nil {
		return 0, err
	}
	return FromLittleEndianU16(b), nil
}

// CStringAt decodes a length-prefixed string at off and returns it with the
// number of bytes it occupies.
func CStringAt(data []byte, off int64) (string, int64, error) {
	n, err := I32At(data, off)
	if err != nil {
		return "", 0, err
	}
	if n < 0 {
		return "", 0, fmt.Errorf("negative string length %d at offset %d: %w", n, off, format.ErrMalformed)
	}
	b, err := Span(data, off+4, int(n))
	if err != nil {
		return "", 0, err
	}
	return string(b), 4 + int64(n), nil
}
