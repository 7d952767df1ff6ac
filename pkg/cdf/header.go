// Package cdf decodes Affymetrix CDF probe layout files in both the binary
// XDA encoding and the legacy text encoding.
package cdf

import (
	"fmt"
	"io"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// Version is the newest XDA version this package decodes.
const Version int32 = 1

// Fixed on-disk record sizes of the XDA encoding.
const (
	ProbeSize        = 14
	ProbeGroupSize   = 82
	ProbeSetSize     = 20
	QCProbeSize      = 7
	QCProbeSetSize   = 6
	ProbeSetNameSize = 64
	GroupNameSize    = 64

	headerFixedSize = 24 // magic, version, cols, rows, sets, qc sets, reference length
)

// Header is the file-level description shared by both encodings.
type Header struct {
	Magic          int32
	Version        int32
	Cols           uint16
	Rows           uint16
	NumProbeSets   int32
	NumQCProbeSets int32
	Reference      string
}

// NumCells is the number of cells on the array.
func (h Header) NumCells() int {
	return int(h.Cols) * int(h.Rows)
}

// Size returns the encoded header length in bytes.
func (h Header) Size() int64 {
	return headerFixedSize + int64(len(h.Reference))
}

func (h Header) validate() error {
	if h.Magic != format.MagicCDF {
		return fmt.Errorf("magic %d: %w", h.Magic, format.ErrFormatMismatch)
	}
	if h.Version > Version {
		return fmt.Errorf("version %d: %w", h.Version, format.ErrUnsupportedVersion)
	}
	if h.NumProbeSets < 0 || h.NumQCProbeSets < 0 {
		return fmt.Errorf("negative probe set count (%d, %d): %w", h.NumProbeSets, h.NumQCProbeSets, format.ErrMalformed)
	}
	return nil
}

// ReadHeader reads exactly the XDA header from r and validates magic and
// version. Nothing past the reference string is consumed.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(binio.NewReader(r))
}

func readHeader(br *binio.Reader) (Header, error) {
	var h Header
	b, err := br.Record(8)
	if err != nil {
		return h, fmt.Errorf("read magic: %w", err)
	}
	h.Magic = binio.FromLittleEndianI32(b[0:])
	h.Version = binio.FromLittleEndianI32(b[4:])
	if err := h.validate(); err != nil {
		return h, err
	}

	b, err = br.Record(12)
	if err != nil {
		return h, fmt.Errorf("read dimensions: %w", err)
	}
	h.Cols = binio.FromLittleEndianU16(b[0:])
	h.Rows = binio.FromLittleEndianU16(b[2:])
	h.NumProbeSets = binio.FromLittleEndianI32(b[4:])
	h.NumQCProbeSets = binio.FromLittleEndianI32(b[8:])
	if err := h.validate(); err != nil {
		return h, err
	}

	h.Reference, err = br.CString()
	if err != nil {
		return h, fmt.Errorf("read reference: %w", err)
	}
	return h, nil
}

// decodeHeader reads the header from the start of a mapping.
func decodeHeader(data []byte) (Header, error) {
	var h Header
	b, err := binio.Span(data, 0, 8)
	if err != nil {
		return h, fmt.Errorf("read magic: %w", err)
	}
	h.Magic = binio.FromLittleEndianI32(b[0:])
	h.Version = binio.FromLittleEndianI32(b[4:])
	if err := h.validate(); err != nil {
		return h, err
	}

	b, err = binio.Span(data, 8, 12)
	if err != nil {
		return h, fmt.Errorf("read dimensions: %w", err)
	}
	h.Cols = binio.FromLittleEndianU16(b[0:])
	h.Rows = binio.FromLittleEndianU16(b[2:])
	h.NumProbeSets = binio.FromLittleEndianI32(b[4:])
	h.NumQCProbeSets = binio.FromLittleEndianI32(b[8:])
	if err := h.validate(); err != nil {
		return h, err
	}

	h.Reference, _, err = binio.CStringAt(data, 20)
	if err != nil {
		return h, fmt.Errorf("read reference: %w", err)
	}
	return h, nil
}
