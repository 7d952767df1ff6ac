// Package fixture builds synthetic CDF and CEL files for tests and
// benchmarks. The same logical array can be written in the XDA and the
// text encoding so the two decoders can be checked against each other.
package fixture

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Probe set types, numbered as in the XDA encoding.
const (
	TypeUnknown uint16 = iota
	TypeExpression
	TypeGenotyping
	TypeResequencing
	TypeTag
)

// CDFCell is one probe of a group, stored in final (decoded) order.
type CDFCell struct {
	X, Y      uint16
	ListIndex int32
	Expos     int32
	PBase     byte
	TBase     byte
}

// CDFGroup is one block of a unit.
type CDFGroup struct {
	Name      string
	NumLists  int32
	Direction uint8
	Cells     []CDFCell
	// StoredStop, when non-zero, is written as the stop position instead
	// of the last cell's list index.
	StoredStop int32
}

// CDFUnit is one probe set.
type CDFUnit struct {
	Name         string
	Type         uint16
	Direction    uint8
	NumLists     int32
	CellsPerList uint8
	Number       int32
	Groups       []CDFGroup
}

// NumCells sums the cells of every group.
func (u CDFUnit) NumCells() int32 {
	var n int32
	for _, g := range u.Groups {
		n += int32(len(g.Cells))
	}
	return n
}

// CDFQCCell is one QC probe.
type CDFQCCell struct {
	X, Y         uint16
	ProbeLength  uint8
	PerfectMatch bool
	Background   bool
}

// CDFQCUnit is one QC probe set.
type CDFQCUnit struct {
	Type  uint16
	Cells []CDFQCCell
}

// CDF is a logical probe layout.
type CDF struct {
	ChipName  string
	Cols      uint16
	Rows      uint16
	Reference string
	QC        []CDFQCUnit
	Units     []CDFUnit
}

const (
	cdfMagic      = 67
	nameWidth     = 64
	probeSetSize  = 20
	groupSize     = 82
	probeSize     = 14
	qcSetSize     = 6
	qcProbeSize   = 7
	cdfHeaderSize = 24
)

// WriteXDA writes c in the binary encoding.
func (c *CDF) WriteXDA(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := leWriter{w: bw}

	le.i32(cdfMagic)
	le.i32(1)
	le.u16(c.Cols)
	le.u16(c.Rows)
	le.i32(int32(len(c.Units)))
	le.i32(int32(len(c.QC)))
	le.cstring(c.Reference)

	for _, u := range c.Units {
		le.fixed(u.Name, nameWidth)
	}

	off := int32(cdfHeaderSize + len(c.Reference) + nameWidth*len(c.Units) + 4*(len(c.QC)+len(c.Units)))
	for _, q := range c.QC {
		le.i32(off)
		off += qcSetSize + qcProbeSize*int32(len(q.Cells))
	}
	for _, u := range c.Units {
		le.i32(off)
		off += probeSetSize
		for _, g := range u.Groups {
			off += groupSize + probeSize*int32(len(g.Cells))
		}
	}

	for _, q := range c.QC {
		le.u16(q.Type)
		le.i32(int32(len(q.Cells)))
		for _, cell := range q.Cells {
			le.u16(cell.X)
			le.u16(cell.Y)
			le.u8(cell.ProbeLength)
			le.bool(cell.PerfectMatch)
			le.bool(cell.Background)
		}
	}

	for _, u := range c.Units {
		le.u16(u.Type)
		le.u8(u.Direction)
		le.i32(u.NumLists)
		le.i32(int32(len(u.Groups)))
		le.i32(u.NumCells())
		le.i32(u.Number)
		le.u8(u.CellsPerList)
		for _, g := range u.Groups {
			le.i32(g.NumLists)
			le.i32(int32(len(g.Cells)))
			le.u8(u.CellsPerList)
			le.u8(g.Direction)
			start, stop := groupRange(g)
			le.i32(start)
			le.i32(stop)
			le.fixed(g.Name, nameWidth)
			for _, cell := range g.Cells {
				le.i32(cell.ListIndex)
				le.u16(cell.X)
				le.u16(cell.Y)
				le.i32(cell.Expos)
				le.u8(cell.PBase)
				le.u8(cell.TBase)
			}
		}
	}

	if le.err != nil {
		return fmt.Errorf("write xda: %w", le.err)
	}
	return bw.Flush()
}

func groupRange(g CDFGroup) (int32, int32) {
	if len(g.Cells) == 0 {
		return 0, 0
	}
	stop := g.Cells[len(g.Cells)-1].ListIndex
	if g.StoredStop != 0 {
		stop = g.StoredStop
	}
	return g.Cells[0].ListIndex, stop
}

func tileFor(t uint16) int {
	switch t {
	case TypeExpression:
		return 3
	case TypeGenotyping:
		return 2
	case TypeResequencing:
		return 1
	case TypeTag:
		return 7
	default:
		return 0
	}
}

// WriteText writes c in the GC3.0 text encoding. Cells are emitted in the
// raw order that decodes back to the stored order: expression lists as
// written, other lists reversed.
func (c *CDF) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\r\n", args...)
	}

	p("[CDF]")
	p("Version=GC3.0")
	p("")
	p("[Chip]")
	p("Name=%s", c.ChipName)
	p("Rows=%d", c.Rows)
	p("Cols=%d", c.Cols)
	p("NumberOfUnits=%d", len(c.Units))
	p("MaxUnit=%d", 1000+len(c.Units))
	p("NumQCUnits=%d", len(c.QC))
	p("ChipReference=%s", c.Reference)
	p("")

	for i, q := range c.QC {
		p("[QCUnit%d]", i+1)
		p("Type=%d", q.Type)
		p("NumberCells=%d", len(q.Cells))
		p("CellHeader=X\tY\tPROBE\tPLEN\tINDEX\tMATCH\tBKGD")
		for k, cell := range q.Cells {
			p("Cell%d=%d\t%d\tN\t%d\t%d\t%d\t%d", k+1, cell.X, cell.Y, cell.ProbeLength,
				int(cell.Y)*int(c.Cols)+int(cell.X), b2i(cell.PerfectMatch), b2i(cell.Background))
		}
		p("")
	}

	for i, u := range c.Units {
		name := u.Name
		if u.Type == TypeExpression {
			name = "NONE"
		}
		p("[Unit%d]", i+1)
		p("Name=%s", name)
		p("Direction=%d", u.Direction)
		p("NumAtoms=%d %d", u.NumLists, u.CellsPerList)
		p("NumCells=%d", u.NumCells())
		p("UnitNumber=%d", u.Number)
		p("UnitType=%d", tileFor(u.Type))
		p("NumberBlocks=%d", len(u.Groups))
		if u.Type == TypeGenotyping {
			p("MutationType=0")
		}
		p("")
		for g, grp := range u.Groups {
			start, stop := groupRange(grp)
			p("[Unit%d_Block%d]", i+1, g+1)
			p("Name=%s", grp.Name)
			p("BlockNumber=%d", g+1)
			p("NumAtoms=%d", grp.NumLists)
			p("NumCells=%d", len(grp.Cells))
			p("StartPosition=%d", start)
			p("StopPosition=%d", stop)
			if u.Type == TypeGenotyping {
				p("Direction=%d", grp.Direction)
			}
			p("CellHeader=X\tY\tPROBE\tFEAT\tQUAL\tEXPOS\tPOS\tCBASE\tPBASE\tTBASE\tATOM\tINDEX\tCODONIND\tCODON\tREGIONTYPE\tREGION")
			for k, cell := range rawOrder(u, grp.Cells) {
				p("Cell%d=%d\t%d\tN\tcontrol\t%s\t%d\t%d\tN\t%c\t%c\t%d\t%d\t-1\t-1\t99\t ",
					k+1, cell.X, cell.Y, qualName(grp.Name), cell.Expos, k%25,
					cell.PBase, cell.TBase, cell.ListIndex, int(cell.Y)*int(c.Cols)+int(cell.X))
			}
			p("")
		}
	}
	return bw.Flush()
}

func rawOrder(u CDFUnit, cells []CDFCell) []CDFCell {
	if u.Type == TypeExpression || u.CellsPerList == 0 {
		return cells
	}
	cpl := int(u.CellsPerList)
	out := make([]CDFCell, len(cells))
	for i := range cells {
		base := (i / cpl) * cpl
		out[i] = cells[base+cpl-i%cpl-1]
	}
	return out
}

func qualName(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, " ", "_")
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// WriteFile creates path and fills it with write.
func WriteFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// leWriter accumulates the first write error so record layouts read
// top to bottom.
type leWriter struct {
	w   io.Writer
	err error
	buf [8]byte
}

func (l *leWriter) write(b []byte) {
	if l.err != nil {
		return
	}
	_, l.err = l.w.Write(b)
}

func (l *leWriter) u8(v uint8) { l.write([]byte{v}) }

func (l *leWriter) bool(v bool) { l.u8(uint8(b2i(v))) }

func (l *leWriter) u16(v uint16) {
	binary.LittleEndian.PutUint16(l.buf[:2], v)
	l.write(l.buf[:2])
}

func (l *leWriter) i16(v int16) { l.u16(uint16(v)) }

func (l *leWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(l.buf[:4], v)
	l.write(l.buf[:4])
}

func (l *leWriter) i32(v int32) { l.u32(uint32(v)) }

func (l *leWriter) f32(v float32) {
	binary.LittleEndian.PutUint32(l.buf[:4], math.Float32bits(v))
	l.write(l.buf[:4])
}

func (l *leWriter) cstring(s string) {
	l.i32(int32(len(s)))
	l.write([]byte(s))
}

func (l *leWriter) fixed(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	if len(s) >= n {
		b[n-1] = 0
	}
	l.write(b)
}
