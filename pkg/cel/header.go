// Package cel decodes Affymetrix CEL intensity files in the binary XDA
// encoding (version 4) and the legacy text encodings (versions 2 and 3).
package cel

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// Version is the XDA version this package decodes.
const Version int32 = 4

const datDelimiter = 0x14

// Header describes a CEL file. Fields after NumSubGrids are derived from the
// header text.
type Header struct {
	Magic       int32
	Version     int32
	Rows        int32
	Cols        int32
	NumCells    int32
	Text        string
	Algorithm   string
	Parameters  string
	Margin      int32
	NumOutliers uint32
	NumMasked   uint32
	NumSubGrids int32

	DatHeader           string
	ChipType            string
	Grid                GridCorners
	AlgorithmParameters []Param

	size int64
}

// Size returns the encoded XDA header length in bytes; entries start here.
func (h Header) Size() int64 { return h.size }

// AlgorithmParameter returns the value recorded for tag.
func (h Header) AlgorithmParameter(tag string) (string, bool) {
	for _, p := range h.AlgorithmParameters {
		if p.Tag == tag {
			return p.Value, true
		}
	}
	return "", false
}

func (h Header) validate() error {
	if h.Magic != format.MagicCEL {
		return fmt.Errorf("magic %d: %w", h.Magic, format.ErrFormatMismatch)
	}
	if h.Version > Version {
		return fmt.Errorf("version %d: %w", h.Version, format.ErrUnsupportedVersion)
	}
	return nil
}

func (h Header) validateCounts() error {
	if h.Rows < 0 || h.Cols < 0 || h.NumCells < 0 {
		return fmt.Errorf("dimensions %dx%d with %d cells: %w", h.Cols, h.Rows, h.NumCells, format.ErrMalformed)
	}
	return nil
}

// ReadHeader reads exactly the XDA header from r.
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
	h.Rows = binio.FromLittleEndianI32(b[0:])
	h.Cols = binio.FromLittleEndianI32(b[4:])
	h.NumCells = binio.FromLittleEndianI32(b[8:])
	if err := h.validateCounts(); err != nil {
		return h, err
	}

	if h.Text, err = br.CString(); err != nil {
		return h, fmt.Errorf("read header text: %w", err)
	}
	if h.Algorithm, err = br.CString(); err != nil {
		return h, fmt.Errorf("read algorithm: %w", err)
	}
	if h.Parameters, err = br.CString(); err != nil {
		return h, fmt.Errorf("read parameters: %w", err)
	}

	b, err = br.Record(16)
	if err != nil {
		return h, fmt.Errorf("read counts: %w", err)
	}
	h.Margin = binio.FromLittleEndianI32(b[0:])
	h.NumOutliers = binio.FromLittleEndianU32(b[4:])
	h.NumMasked = binio.FromLittleEndianU32(b[8:])
	h.NumSubGrids = binio.FromLittleEndianI32(b[12:])
	h.size = br.Offset()

	h.parseText()
	return h, nil
}

// decodeHeader reads the header from the start of a mapping.
func decodeHeader(data []byte) (Header, error) {
	var h Header
	b, err := binio.Span(data, 0, 20)
	if err != nil {
		return h, fmt.Errorf("read magic: %w", err)
	}
	h.Magic = binio.FromLittleEndianI32(b[0:])
	h.Version = binio.FromLittleEndianI32(b[4:])
	if err := h.validate(); err != nil {
		return h, err
	}
	h.Rows = binio.FromLittleEndianI32(b[8:])
	h.Cols = binio.FromLittleEndianI32(b[12:])
	h.NumCells = binio.FromLittleEndianI32(b[16:])
	if err := h.validateCounts(); err != nil {
		return h, err
	}

	off := int64(20)
	for _, dst := range []*string{&h.Text, &h.Algorithm, &h.Parameters} {
		var n int64
		*dst, n, err = binio.CStringAt(data, off)
		if err != nil {
			return h, fmt.Errorf("read header strings: %w", err)
		}
		off += n
	}

	b, err = binio.Span(data, off, 16)
	if err != nil {
		return h, fmt.Errorf("read counts: %w", err)
	}
	h.Margin = binio.FromLittleEndianI32(b[0:])
	h.NumOutliers = binio.FromLittleEndianU32(b[4:])
	h.NumMasked = binio.FromLittleEndianU32(b[8:])
	h.NumSubGrids = binio.FromLittleEndianI32(b[12:])
	h.size = off + 16

	h.parseText()
	return h, nil
}

// parseText fills the fields derived from the header text and the
// parameter string.
func (h *Header) parseText() {
	if h.DatHeader == "" {
		h.DatHeader = parseDatHeader(h.Text)
	}
	h.ChipType = parseChipType(h.Text)
	h.AlgorithmParameters = parseParams(h.Parameters)
	h.Grid = parseGrid(h.Text)
}

func parseDatHeader(text string) string {
	idx := strings.Index(text, "DatHeader=")
	if idx < 0 {
		return ""
	}
	rest := text[idx+len("DatHeader="):]
	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		return ""
	}
	return strings.TrimSuffix(rest[:end], "\r")
}

// parseChipType reads the chip type that follows the second 0x14
// delimiter and one separator character, up to the first '.'. Without a
// '.', it stops one character short of the next delimiter.
func parseChipType(text string) string {
	first := strings.IndexByte(text, datDelimiter)
	if first < 0 {
		return ""
	}
	second := strings.IndexByte(text[first+1:], datDelimiter)
	if second < 0 {
		return ""
	}
	start := first + 1 + second + 2
	if start > len(text) {
		return ""
	}
	rest := text[start:]
	if end := strings.IndexByte(rest, '.'); end >= 0 {
		return rest[:end]
	}
	end := strings.IndexByte(rest, datDelimiter)
	if end < 1 {
		return ""
	}
	return rest[:end-1]
}

// parseParams splits "tag:value;tag=value value" lists. ':' and '=' end a
// tag; ';' and ' ' end a value.
func parseParams(s string) []Param {
	if s == "" {
		return nil
	}
	var (
		out  []Param
		tag  string
		word strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ':', '=':
			tag = word.String()
			word.Reset()
		case ';', ' ':
			out = addParam(out, tag, word.String())
			word.Reset()
		default:
			word.WriteByte(c)
		}
	}
	if word.Len() > 0 || tag != "" {
		out = addParam(out, tag, word.String())
	}
	return out
}

// addParam ignores repeated tags.
func addParam(params []Param, tag, value string) []Param {
	for _, p := range params {
		if p.Tag == tag {
			return params
		}
	}
	return append(params, Param{Tag: tag, Value: value})
}

func parseGrid(text string) GridCorners {
	var g GridCorners
	idx := strings.Index(text, "GridCorner")
	if idx < 0 {
		return g
	}
	var v [8]int32
	fields := strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(text[idx:]))
	keys := []string{"GridCornerUL=", "", "GridCornerUR=", "", "GridCornerLR=", "", "GridCornerLL=", ""}
	if len(fields) < len(keys) {
		return g
	}
	for i, key := range keys {
		f := fields[i]
		if key != "" {
			if !strings.HasPrefix(f, key) {
				return g
			}
			f = f[len(key):]
		}
		n, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return g
		}
		v[i] = int32(n)
	}
	g.UpperLeft = Point{v[0], v[1]}
	g.UpperRight = Point{v[2], v[3]}
	g.LowerRight = Point{v[4], v[5]}
	g.LowerLeft = Point{v[6], v[7]}
	return g
}
