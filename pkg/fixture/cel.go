package fixture

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	celMagic   = 64
	celVersion = 4
	datDelim   = "\x14"
)

// CELEntry is one cell of intensity data.
type CELEntry struct {
	Intensity float32
	Stdv      float32
	Pixels    int16
}

// CEL is a logical intensity file.
type CEL struct {
	Cols       int32
	Rows       int32
	ChipType   string
	Algorithm  string
	Parameters string
	Margin     int32
	// Grid holds UL, UR, LR, LL corners as x,y pairs.
	Grid     [8]int32
	Entries  []CELEntry
	Masked   []int
	Outliers []int
}

// DatHeader returns a scanner header line naming the chip type between
// the second and third 0x14 delimiters.
func (c *CEL) DatHeader() string {
	return fmt.Sprintf("[0..46101]  %s:CLS=%d RWS=%d XIN=3  YIN=3  VE=17        2.0 08/05/05 10:12:31    %s  %s %s.1sq %s  %s  %s  %s  %s  %s  %s  %s  %s 6",
		c.ChipType, c.Cols, c.Rows, datDelim, datDelim, c.ChipType, datDelim, datDelim, datDelim, datDelim, datDelim, datDelim, datDelim, datDelim, datDelim)
}

// HeaderText renders the key=value header block stored in XDA files.
func (c *CEL) HeaderText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cols=%d\nRows=%d\nTotalX=%d\nTotalY=%d\nOffsetX=0\nOffsetY=0\n", c.Cols, c.Rows, c.Cols, c.Rows)
	fmt.Fprintf(&b, "GridCornerUL=%d %d\nGridCornerUR=%d %d\nGridCornerLR=%d %d\nGridCornerLL=%d %d\n",
		c.Grid[0], c.Grid[1], c.Grid[2], c.Grid[3], c.Grid[4], c.Grid[5], c.Grid[6], c.Grid[7])
	fmt.Fprintf(&b, "Axis-invertX=0\nAxisInvertY=0\nswapXY=0\nDatHeader=%s\nAlgorithm=%s\nAlgorithmParameters=%s\n",
		c.DatHeader(), c.Algorithm, c.Parameters)
	return b.String()
}

func (c *CEL) xy(idx int) (int, int) {
	return idx % int(c.Cols), idx / int(c.Cols)
}

// WriteXDA writes c in the version 4 binary encoding.
func (c *CEL) WriteXDA(w io.Writer) error {
	bw := bufio.NewWriter(w)
	le := leWriter{w: bw}

	le.i32(celMagic)
	le.i32(celVersion)
	le.i32(c.Rows)
	le.i32(c.Cols)
	le.i32(int32(len(c.Entries)))
	le.cstring(c.HeaderText())
	le.cstring(c.Algorithm)
	le.cstring(c.Parameters)
	le.i32(c.Margin)
	le.u32(uint32(len(c.Outliers)))
	le.u32(uint32(len(c.Masked)))
	le.i32(0)

	for _, e := range c.Entries {
		le.f32(e.Intensity)
		le.f32(e.Stdv)
		le.i16(e.Pixels)
	}
	for _, idx := range c.Masked {
		x, y := c.xy(idx)
		le.i16(int16(x))
		le.i16(int16(y))
	}
	for _, idx := range c.Outliers {
		x, y := c.xy(idx)
		le.i16(int16(x))
		le.i16(int16(y))
	}

	if le.err != nil {
		return fmt.Errorf("write xda: %w", le.err)
	}
	return bw.Flush()
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

// WriteTextV3 writes c in the sectioned version 3 text encoding.
func (c *CEL) WriteTextV3(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format+"\r\n", args...)
	}

	p("[CEL]")
	p("Version=3")
	p("")
	p("[HEADER]")
	for _, line := range strings.Split(strings.TrimSuffix(c.HeaderText(), "\n"), "\n") {
		p("%s", line)
	}
	p("")
	p("[INTENSITY]")
	p("NumberCells=%d", len(c.Entries))
	p("CellHeader=X\tY\tMEAN\tSTDV\tNPIXELS")
	for i, e := range c.Entries {
		x, y := c.xy(i)
		p("%3d\t%3d\t%s\t%s\t%3d", x, y, formatFloat(e.Intensity), formatFloat(e.Stdv), e.Pixels)
	}
	p("")
	c.writeCellList(p, "MASKS", c.Masked)
	c.writeCellList(p, "OUTLIERS", c.Outliers)
	p("[MODIFIED]")
	p("NumberCells=0")
	p("CellHeader=X\tY\tORIGMEAN")
	return bw.Flush()
}

func (c *CEL) writeCellList(p func(string, ...any), section string, cells []int) {
	p("[%s]", section)
	p("NumberCells=%d", len(cells))
	p("CellHeader=X\tY")
	for _, idx := range cells {
		x, y := c.xy(idx)
		p("%d\t%d", x, y)
	}
	p("")
}

// WriteTextV2 writes c in the headerless version 2 text encoding, which
// carries no mask or outlier lists.
func (c *CEL) WriteTextV2(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "COLS/ROWS=%d %d\r\n", c.Cols, c.Rows)
	fmt.Fprintf(bw, "DatHeader=%s\r\n", c.DatHeader())
	fmt.Fprintf(bw, "X\tY\tMEAN\tSTDV\tNPIXELS\r\n")
	for i, e := range c.Entries {
		x, y := c.xy(i)
		fmt.Fprintf(bw, "%d %d %s %s %d\r\n", x, y, formatFloat(e.Intensity), formatFloat(e.Stdv), e.Pixels)
	}
	return bw.Flush()
}
