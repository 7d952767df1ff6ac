package cel

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// ParseText decodes the version 3 sectioned encoding or the version 2
// "COLS/ROWS=" encoding. The header text is rebuilt in the XDA key=value
// form so both encodings expose the same Header fields.
func ParseText(r io.Reader, headerOnly, sparse bool) (Header, *OwnedRecords, error) {
	p := &textParser{lines: binio.NewLineReader(r)}
	hdr, err := p.header()
	if err != nil {
		return hdr, nil, err
	}
	if headerOnly {
		return hdr, nil, nil
	}

	var recs *OwnedRecords
	if hdr.Version == 2 {
		recs, err = p.bodyV2(hdr)
	} else {
		recs, err = p.bodyV3(&hdr, sparse)
	}
	if err != nil {
		return hdr, nil, err
	}
	return hdr, recs, nil
}

type textParser struct {
	lines *binio.LineReader
}

func (p *textParser) raw(what string) (string, error) {
	s, ok := p.lines.Raw()
	if !ok {
		if err := p.lines.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", what, err)
		}
		return "", fmt.Errorf("line %d: expected %s: %w", p.lines.Line(), what, format.ErrTruncated)
	}
	return s, nil
}

func (p *textParser) skipTo(section string) error {
	if p.lines.SkipTo(section) {
		return nil
	}
	if err := p.lines.Err(); err != nil {
		return fmt.Errorf("read %s: %w", section, err)
	}
	return fmt.Errorf("missing %s: %w", section, format.ErrTruncated)
}

// keyInt parses "key=N" where N is the leading integer after '='.
func (p *textParser) keyInt(line, key string) (int, error) {
	v, ok := binio.Value(line, key)
	if !ok {
		return 0, fmt.Errorf("line %d: expected %s, got %q: %w", p.lines.Line(), key, line, format.ErrMalformed)
	}
	f := strings.Fields(v)
	if len(f) == 0 {
		return 0, fmt.Errorf("line %d: %s has no value: %w", p.lines.Line(), key, format.ErrMalformed)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q: %w", p.lines.Line(), key, v, format.ErrMalformed)
	}
	return n, nil
}

func (p *textParser) header() (Header, error) {
	h := Header{Magic: format.MagicCEL}
	first, err := p.raw("[CEL]")
	if err != nil {
		return h, err
	}

	switch {
	case strings.HasPrefix(first, "[CEL]"):
		h.Version = 3
		err = p.headerV3(&h)
	case strings.HasPrefix(first, "COLS/ROWS="):
		h.Version = 2
		err = p.headerV2(&h, first)
	default:
		return h, fmt.Errorf("first line %q: %w", first, format.ErrFormatMismatch)
	}
	if err != nil {
		return h, err
	}
	h.NumCells = h.Cols * h.Rows
	return h, nil
}

// setDims stores the array dimensions. Their product, the cell count,
// must fit an int32.
func setDims(h *Header, cols, rows int) error {
	if cols < 0 || rows < 0 || cols > math.MaxInt32 || rows > math.MaxInt32 ||
		int64(cols)*int64(rows) > math.MaxInt32 {
		return fmt.Errorf("dimensions %dx%d: %w", cols, rows, format.ErrMalformed)
	}
	h.Cols, h.Rows = int32(cols), int32(rows)
	return nil
}

func (p *textParser) headerV2(h *Header, first string) error {
	v, _ := binio.Value(first, "COLS/ROWS")
	f := strings.Fields(v)
	if len(f) < 2 {
		return fmt.Errorf("COLS/ROWS %q: %w", v, format.ErrMalformed)
	}
	cols, errC := strconv.Atoi(f[0])
	rows, errR := strconv.Atoi(f[1])
	if errC != nil || errR != nil {
		return fmt.Errorf("COLS/ROWS %q: %w", v, format.ErrMalformed)
	}
	if err := setDims(h, cols, rows); err != nil {
		return err
	}

	second, err := p.raw("header")
	if err != nil {
		return err
	}
	if dat, ok := binio.Value(second, "DatHeader"); ok {
		h.DatHeader = dat
	}
	if _, err := p.raw("column header"); err != nil {
		return err
	}

	original := first + "\n" + second + "\n"
	h.ChipType = parseChipType(original)
	h.Grid = parseGrid(original)
	h.Text = h.synthesizeText()
	return nil
}

func (p *textParser) headerV3(h *Header) error {
	if err := p.skipTo("[HEADER]"); err != nil {
		return err
	}
	var original strings.Builder

	line, err := p.raw("Cols")
	if err != nil {
		return err
	}
	cols, err := p.keyInt(line, "Cols")
	if err != nil {
		return err
	}
	original.WriteString(line + "\n")

	line, err = p.raw("Rows")
	if err != nil {
		return err
	}
	rows, err := p.keyInt(line, "Rows")
	if err != nil {
		return err
	}
	original.WriteString(line + "\n")
	if err := setDims(h, cols, rows); err != nil {
		return err
	}

	for {
		line, err := p.raw("AlgorithmParameters")
		if err != nil {
			return err
		}
		original.WriteString(line + "\n")
		if v, ok := binio.Value(line, "DatHeader"); ok {
			h.DatHeader = v
		}
		if v, ok := binio.Value(line, "Algorithm"); ok {
			h.Algorithm = firstField(v)
		}
		if v, ok := binio.Value(line, "AlgorithmParameters"); ok {
			h.Parameters = firstField(v)
			break
		}
	}

	text := original.String()
	h.ChipType = parseChipType(text)
	h.Grid = parseGrid(text)
	h.AlgorithmParameters = parseParams(h.Parameters)
	if v, ok := h.AlgorithmParameter("CellMargin"); ok {
		if m, err := strconv.Atoi(v); err == nil {
			h.Margin = int32(m)
		}
	}
	h.Text = h.synthesizeText()
	return nil
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// synthesizeText renders the header in the form XDA files store it.
func (h *Header) synthesizeText() string {
	g := h.Grid
	return fmt.Sprintf("Cols=%d\nRows=%d\nTotalX=%d\nTotalY=%d\nOffsetX=0\nOffsetY=0\n"+
		"GridCornerUL=%d %d\nGridCornerUR=%d %d\nGridCornerLR=%d %d\nGridCornerLL=%d %d\n"+
		"Axis-invertX=0\nAxisInvertY=0\nswapXY=0\nDatHeader=%s\nAlgorithm=%s\nAlgorithmParameters=%s\n",
		h.Cols, h.Rows, h.Cols, h.Rows,
		g.UpperLeft.X, g.UpperLeft.Y, g.UpperRight.X, g.UpperRight.Y,
		g.LowerRight.X, g.LowerRight.Y, g.LowerLeft.X, g.LowerLeft.Y,
		h.DatHeader, h.Algorithm, h.Parameters)
}

// cellLine parses "x y mean stdv pixels" separated by tabs or spaces.
func (p *textParser) cellLine(hdr Header, line string) (int, Entry, error) {
	f := strings.Fields(line)
	bad := func() (int, Entry, error) {
		return 0, Entry{}, fmt.Errorf("line %d: cell %q: %w", p.lines.Line(), line, format.ErrMalformed)
	}
	if len(f) < 5 {
		return bad()
	}
	x, errX := strconv.Atoi(f[0])
	y, errY := strconv.Atoi(f[1])
	mean, errM := strconv.ParseFloat(f[2], 32)
	stdv, errS := strconv.ParseFloat(f[3], 32)
	pixels, errP := strconv.ParseInt(f[4], 10, 16)
	if errX != nil || errY != nil || errM != nil || errS != nil || errP != nil {
		return bad()
	}
	if x < 0 || y < 0 || x >= int(hdr.Cols) || y >= int(hdr.Rows) {
		return 0, Entry{}, fmt.Errorf("line %d: cell (%d,%d) outside %dx%d: %w", p.lines.Line(), x, y, hdr.Cols, hdr.Rows, format.ErrMalformed)
	}
	return y*int(hdr.Cols) + x, Entry{Intensity: float32(mean), Stdv: float32(stdv), Pixels: int16(pixels)}, nil
}

// placedCell is one parsed intensity line and the cell it belongs to.
type placedCell struct {
	idx   int
	entry Entry
}

// table lays the parsed lines out in cell order. It is only called once
// the lines have been read, so its size is backed by real input.
func table(n int, cells []placedCell) *OwnedRecords {
	recs := newOwnedRecords(n)
	recs.entries = recs.entries[:n]
	for _, c := range cells {
		recs.entries[c.idx] = c.entry
	}
	return recs
}

func (p *textParser) bodyV2(hdr Header) (*OwnedRecords, error) {
	var cells []placedCell
	for range int(hdr.NumCells) {
		line, err := p.raw("cell")
		if err != nil {
			return nil, err
		}
		idx, e, err := p.cellLine(hdr, line)
		if err != nil {
			return nil, err
		}
		cells = append(cells, placedCell{idx, e})
	}
	return table(int(hdr.NumCells), cells), nil
}

// untilBlank returns the next line, or ok=false at end of input or at a
// line shorter than two characters.
func (p *textParser) untilBlank() (string, bool) {
	s, ok := p.lines.Raw()
	if !ok || len(s) < 2 {
		return "", false
	}
	return s, true
}

// bodyV3 reads [INTENSITY], which must list every cell, then [MASKS] and
// [OUTLIERS] when sparse is set. Without sparse the file may end after
// the intensities.
func (p *textParser) bodyV3(hdr *Header, sparse bool) (*OwnedRecords, error) {
	if err := p.skipTo("[INTENSITY]"); err != nil {
		return nil, err
	}
	// NumberCells and the column header
	for _, what := range []string{"NumberCells", "CellHeader"} {
		if _, err := p.raw(what); err != nil {
			return nil, err
		}
	}
	var cells []placedCell
	for {
		line, ok := p.untilBlank()
		if !ok {
			break
		}
		idx, e, err := p.cellLine(*hdr, line)
		if err != nil {
			return nil, err
		}
		cells = append(cells, placedCell{idx, e})
	}
	if err := p.lines.Err(); err != nil {
		return nil, fmt.Errorf("read intensities: %w", err)
	}
	if len(cells) < int(hdr.NumCells) {
		return nil, fmt.Errorf("line %d: [INTENSITY] lists %d of %d cells: %w", p.lines.Line(), len(cells), hdr.NumCells, format.ErrTruncated)
	}
	recs := table(int(hdr.NumCells), cells)

	if !sparse {
		hdr.NumMasked = 0
		hdr.NumOutliers = 0
		return recs, nil
	}
	n, err := p.coordSection(*hdr, "[MASKS]", recs.masked)
	if err != nil {
		return nil, err
	}
	hdr.NumMasked = n
	n, err = p.coordSection(*hdr, "[OUTLIERS]", recs.outliers)
	if err != nil {
		return nil, err
	}
	hdr.NumOutliers = n
	return recs, nil
}

// coordSection reads a [MASKS] or [OUTLIERS] block of "x\ty" lines.
func (p *textParser) coordSection(hdr Header, section string, dst CellSet) (uint32, error) {
	if err := p.skipTo(section); err != nil {
		return 0, err
	}
	line, err := p.raw("NumberCells")
	if err != nil {
		return 0, err
	}
	n, err := p.keyInt(line, "NumberCells")
	if err != nil {
		return 0, err
	}
	if _, err := p.raw("CellHeader"); err != nil {
		return 0, err
	}
	for {
		line, ok := p.untilBlank()
		if !ok {
			break
		}
		f := strings.Fields(line)
		if len(f) < 2 {
			return 0, fmt.Errorf("line %d: %s cell %q: %w", p.lines.Line(), section, line, format.ErrMalformed)
		}
		x, errX := strconv.Atoi(f[0])
		y, errY := strconv.Atoi(f[1])
		if errX != nil || errY != nil {
			return 0, fmt.Errorf("line %d: %s cell %q: %w", p.lines.Line(), section, line, format.ErrMalformed)
		}
		dst.add(int32(y)*hdr.Cols + int32(x))
	}
	if n < 0 {
		n = 0
	}
	return uint32(n), nil
}
