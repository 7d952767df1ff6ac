package cdf

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// Tiling types used by the UnitType key of the text encoding.
const (
	tileStandard          = 1
	tileBlock             = 2
	tileGeneExpression    = 3
	tileStandardAlternate = 5
	tileStandardVariant   = 6
	tileUniversal         = 7
)

var textVersions = map[string]int32{"GC1.0": 1, "GC2.0": 2, "GC3.0": 3}

// probeSetTypeFromTile maps a text UnitType to a probe set type.
func probeSetTypeFromTile(tile int) ProbeSetType {
	switch tile {
	case tileStandard, tileStandardAlternate, tileStandardVariant:
		return ResequencingProbeSet
	case tileBlock:
		return GenotypingProbeSet
	case tileGeneExpression:
		return ExpressionProbeSet
	case tileUniversal:
		return TagProbeSet
	default:
		return UnknownProbeSet
	}
}

func defaultCellsPerList(t ProbeSetType) uint8 {
	if t == ExpressionProbeSet {
		return 2
	}
	return 4
}

// ParseText decodes the text encoding. With headerOnly set it stops after
// the [Chip] section. Running out of input while looking for the next unit
// ends the parse successfully; units never reached stay zero-valued.
func ParseText(r io.Reader, logic Logic, headerOnly bool) (Header, *OwnedRecords, error) {
	p := &textParser{lines: binio.NewLineReader(r), logic: logic}
	hdr, err := p.header()
	if err != nil {
		return hdr, nil, err
	}
	if headerOnly {
		return hdr, nil, nil
	}
	recs, err := p.body(hdr)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, recs, nil
}

type textParser struct {
	lines *binio.LineReader
	logic Logic
}

func (p *textParser) next(what string) (string, error) {
	s, ok := p.lines.Next()
	if !ok {
		if err := p.lines.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", what, err)
		}
		return "", fmt.Errorf("line %d: expected %s: %w", p.lines.Line(), what, format.ErrTruncated)
	}
	return s, nil
}

// value returns the text after '=' on the next line.
func (p *textParser) value(what string) (string, error) {
	s, err := p.next(what)
	if err != nil {
		return "", err
	}
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return "", fmt.Errorf("line %d: expected %s, got %q: %w", p.lines.Line(), what, s, format.ErrMalformed)
	}
	return s[idx+1:], nil
}

func (p *textParser) intValue(what string) (int, error) {
	v, err := p.value(what)
	if err != nil {
		return 0, err
	}
	n, err := leadingInt(v)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q: %w", p.lines.Line(), what, v, format.ErrMalformed)
	}
	return n, nil
}

func (p *textParser) skip(what string) error {
	_, err := p.next(what)
	return err
}

// leadingInt parses the first whitespace-separated field of s.
func leadingInt(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(fields[0])
}

func (p *textParser) header() (Header, error) {
	var h Header
	first, err := p.next("[CDF]")
	if err != nil {
		return h, err
	}
	if !strings.HasPrefix(first, "[CDF]") {
		return h, fmt.Errorf("first line %q: %w", first, format.ErrFormatMismatch)
	}

	v, err := p.value("Version")
	if err != nil {
		return h, err
	}
	ver, ok := textVersions[strings.TrimSpace(v)]
	if !ok {
		return h, fmt.Errorf("text version %q: %w", v, format.ErrUnsupportedVersion)
	}
	h.Version = ver

	if err := p.skip("[Chip]"); err != nil {
		return h, err
	}
	if err := p.skip("Name"); err != nil {
		return h, err
	}
	rows, err := p.intValue("Rows")
	if err != nil {
		return h, err
	}
	cols, err := p.intValue("Cols")
	if err != nil {
		return h, err
	}
	units, err := p.intValue("NumberOfUnits")
	if err != nil {
		return h, err
	}
	if err := p.skip("MaxUnit"); err != nil {
		return h, err
	}
	if rows < 0 || rows > 0xffff || cols < 0 || cols > 0xffff || units < 0 {
		return h, fmt.Errorf("dimensions %dx%d with %d units: %w", cols, rows, units, format.ErrMalformed)
	}
	h.Rows = uint16(rows)
	h.Cols = uint16(cols)
	h.NumProbeSets = int32(units)

	if h.Version > 1 {
		qc, err := p.intValue("NumQCUnits")
		if err != nil {
			return h, err
		}
		if qc < 0 {
			return h, fmt.Errorf("NumQCUnits %d: %w", qc, format.ErrMalformed)
		}
		h.NumQCProbeSets = int32(qc)
		ref, err := p.value("ChipReference")
		if err != nil {
			return h, err
		}
		h.Reference = ref
	}
	return h, nil
}

func (p *textParser) body(hdr Header) (*OwnedRecords, error) {
	// Lists grow as sections are parsed. Units past the last one in the
	// file are reported through declared and read as zero values.
	recs := &OwnedRecords{declared: int(hdr.NumProbeSets)}

	for i := range int(hdr.NumQCProbeSets) {
		var qc ownedQC
		if err := p.qcUnit(&qc); err != nil {
			return nil, fmt.Errorf("QC unit %d: %w", i, err)
		}
		recs.qc = append(recs.qc, qc)
	}

	for i := 0; ; i++ {
		if !p.seekUnit() {
			if err := p.lines.Err(); err != nil {
				return nil, fmt.Errorf("read unit %d: %w", i, err)
			}
			return recs, nil
		}
		if i >= recs.declared {
			return nil, fmt.Errorf("unit %d beyond NumberOfUnits=%d: %w", i, recs.declared, format.ErrMalformed)
		}
		var set ownedSet
		var name string
		if err := p.unit(hdr, &set, &name); err != nil {
			return nil, fmt.Errorf("unit %d: %w", i, err)
		}
		recs.sets = append(recs.sets, set)
		recs.names = append(recs.names, name)
	}
}

// seekUnit advances to the next "[UnitN]" line, skipping block sections.
func (p *textParser) seekUnit() bool {
	for {
		s, ok := p.lines.Next()
		if !ok {
			return false
		}
		if len(s) > 5 && strings.HasPrefix(s, "[Unit") && !strings.Contains(s, "_") {
			return true
		}
	}
}

func (p *textParser) qcUnit(qc *ownedQC) error {
	if err := p.skip("[QCUnit]"); err != nil {
		return err
	}
	typ, err := p.intValue("Type")
	if err != nil {
		return err
	}
	n, err := p.intValue("NumberCells")
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("NumberCells %d: %w", n, format.ErrMalformed)
	}
	if err := p.skip("CellHeader"); err != nil {
		return err
	}
	qc.Type = QCProbeSetType(typ)
	qc.NumCells = int32(n)
	for range n {
		v, err := p.value("QC cell")
		if err != nil {
			return err
		}
		f := strings.Fields(v)
		if len(f) < 4 {
			return fmt.Errorf("line %d: QC cell %q: %w", p.lines.Line(), v, format.ErrMalformed)
		}
		x, errX := strconv.Atoi(f[0])
		y, errY := strconv.Atoi(f[1])
		plen, errL := strconv.Atoi(f[3])
		if errX != nil || errY != nil || errL != nil {
			return fmt.Errorf("line %d: QC cell %q: %w", p.lines.Line(), v, format.ErrMalformed)
		}
		qc.cells = append(qc.cells, QCProbe{X: uint16(x), Y: uint16(y), ProbeLength: uint8(plen)})
	}
	return nil
}

func (p *textParser) unit(hdr Header, s *ownedSet, name *string) error {
	v, err := p.value("Name")
	if err != nil {
		return err
	}
	*name = v

	dir, err := p.intValue("Direction")
	if err != nil {
		return err
	}
	s.Direction = Direction(dir)

	atoms, err := p.value("NumAtoms")
	if err != nil {
		return err
	}
	f := strings.Fields(atoms)
	if len(f) == 0 {
		return fmt.Errorf("line %d: NumAtoms %q: %w", p.lines.Line(), atoms, format.ErrMalformed)
	}
	lists, err := strconv.Atoi(f[0])
	if err != nil {
		return fmt.Errorf("line %d: NumAtoms %q: %w", p.lines.Line(), atoms, format.ErrMalformed)
	}
	s.NumLists = int32(lists)
	if len(f) > 1 {
		if cpl, err := strconv.Atoi(f[1]); err == nil && cpl > 0 && cpl < 256 {
			s.NumCellsPerList = uint8(cpl)
		}
	}

	cells, err := p.intValue("NumCells")
	if err != nil {
		return err
	}
	s.NumCells = int32(cells)
	num, err := p.intValue("UnitNumber")
	if err != nil {
		return err
	}
	s.ProbeSetNumber = int32(num)
	tile, err := p.intValue("UnitType")
	if err != nil {
		return err
	}
	s.Type = probeSetTypeFromTile(tile)
	blocks, err := p.intValue("NumberBlocks")
	if err != nil {
		return err
	}
	if blocks < 0 {
		return fmt.Errorf("NumberBlocks %d: %w", blocks, format.ErrMalformed)
	}
	s.NumGroups = int32(blocks)

	if s.NumCellsPerList == 0 {
		s.NumCellsPerList = defaultCellsPerList(s.Type)
	}
	if s.Type == GenotypingProbeSet && hdr.Version > 1 {
		if err := p.skip("MutationType"); err != nil {
			return err
		}
	}

	for g := range blocks {
		var grp ownedGroup
		if err := p.block(hdr, s, &grp, name); err != nil {
			return fmt.Errorf("block %d: %w", g, err)
		}
		s.groups = append(s.groups, grp)
	}
	return nil
}

func (p *textParser) block(hdr Header, s *ownedSet, grp *ownedGroup, setName *string) error {
	if err := p.skip("block section"); err != nil {
		return err
	}
	name, err := p.value("Name")
	if err != nil {
		return err
	}
	grp.Name = name
	if s.Type == ExpressionProbeSet {
		*setName = name
	}
	if err := p.skip("BlockNumber"); err != nil {
		return err
	}

	lists, err := p.intValue("NumAtoms")
	if err != nil {
		return err
	}
	cells, err := p.intValue("NumCells")
	if err != nil {
		return err
	}
	if cells < 0 {
		return fmt.Errorf("NumCells %d: %w", cells, format.ErrMalformed)
	}
	start, err := p.intValue("StartPosition")
	if err != nil {
		return err
	}
	stop, err := p.intValue("StopPosition")
	if err != nil {
		return err
	}
	grp.NumLists = int32(lists)
	grp.NumCells = int32(cells)
	grp.Start = int32(start)
	grp.Stop = int32(stop)
	grp.NumCellsPerList = s.NumCellsPerList

	if s.Type == GenotypingProbeSet && hdr.Version > 2 {
		dir, err := p.intValue("Direction")
		if err != nil {
			return err
		}
		grp.Direction = Direction(dir)
	} else {
		grp.Direction = s.Direction
	}

	if err := p.skip("CellHeader"); err != nil {
		return err
	}

	// Every line is read before slots are assigned, so the cell table is
	// only as large as the input that backs it.
	var lines []Probe
	for range cells {
		cell, err := p.cell()
		if err != nil {
			return err
		}
		lines = append(lines, cell)
	}

	cpl := int(s.NumCellsPerList)
	grp.cells = make([]Probe, cells)
	filled := make([]bool, cells)
	for i, cell := range lines {
		idx := cellSlot(i, cpl, s.Type, cell, p.logic)
		if idx < 0 || idx >= cells || filled[idx] {
			return fmt.Errorf("cell %d maps to slot %d of %d: %w", i, idx, cells, format.ErrMalformed)
		}
		grp.cells[idx] = cell
		filled[idx] = true
	}
	// A single cell block keeps its StopPosition.
	if cells > 0 {
		grp.Start = lines[0].ListIndex
	}
	if cells > 1 {
		grp.Stop = lines[cells-1].ListIndex
	}
	return nil
}

// cellSlot places the i-th cell line of a block. Expression units put the
// perfect match first within each list; other units reverse each list.
func cellSlot(i, cpl int, t ProbeSetType, cell Probe, logic Logic) int {
	base := (i / cpl) * cpl
	if t == ExpressionProbeSet {
		if cell.IsMismatch(logic) {
			return base + 1
		}
		return base
	}
	return base + (cpl - i%cpl - 1)
}

// cell parses "X Y PROBE FEAT QUAL EXPOS POS CBASE PBASE TBASE ATOM ...".
func (p *textParser) cell() (Probe, error) {
	v, err := p.value("Cell")
	if err != nil {
		return Probe{}, err
	}
	f := strings.Fields(v)
	bad := func() (Probe, error) {
		return Probe{}, fmt.Errorf("line %d: cell %q: %w", p.lines.Line(), v, format.ErrMalformed)
	}
	if len(f) < 11 {
		return bad()
	}
	x, err := strconv.Atoi(f[0])
	if err != nil {
		return bad()
	}
	y, err := strconv.Atoi(f[1])
	if err != nil {
		return bad()
	}
	expos, err := strconv.Atoi(f[5])
	if err != nil {
		return bad()
	}
	list, err := strconv.Atoi(f[10])
	if err != nil {
		return bad()
	}
	return Probe{
		X:         uint16(x),
		Y:         uint16(y),
		Expos:     int32(expos),
		PBase:     f[8][0],
		TBase:     f[9][0],
		ListIndex: int32(list),
	}, nil
}
