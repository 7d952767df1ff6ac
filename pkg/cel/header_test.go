package cel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/eunmann/affxfusion/pkg/format"
)

// failAfter returns data and then an error instead of EOF.
type failAfter struct {
	data []byte
	read int
}

var errPastHeader = errors.New("read past header")

func (f *failAfter) Read(p []byte) (int, error) {
	if f.read >= len(f.data) {
		return 0, errPastHeader
	}
	n := copy(p, f.data[f.read:])
	f.read += n
	return n, nil
}

func TestReadHeaderStopsAtEntries(t *testing.T) {
	c := scenario()
	var buf bytes.Buffer
	if err := c.WriteXDA(&buf); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()
	headerLen := len(full) - 100*EntrySize - 3*4

	r := &failAfter{data: full[:headerLen]}
	h, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Size() != int64(headerLen) {
		t.Errorf("Size() = %d, want %d", h.Size(), headerLen)
	}
	if h.NumCells != 100 || h.NumOutliers != 2 || h.NumMasked != 1 || h.Version != 4 {
		t.Errorf("header = %+v", h)
	}

	mapped, err := decodeHeader(full)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if mapped.Size() != h.Size() || mapped.Text != h.Text || mapped.ChipType != h.ChipType {
		t.Errorf("mapped header differs: size %d vs %d", mapped.Size(), h.Size())
	}
}

func TestReadHeaderErrors(t *testing.T) {
	le := func(vs ...int32) []byte {
		b := make([]byte, 4*len(vs))
		for i, v := range vs {
			b[4*i] = byte(v)
			b[4*i+1] = byte(v >> 8)
			b[4*i+2] = byte(v >> 16)
			b[4*i+3] = byte(v >> 24)
		}
		return b
	}
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, format.ErrTruncated},
		{"wrong magic", le(67, 4), format.ErrFormatMismatch},
		{"newer version", le(64, 5), format.ErrUnsupportedVersion},
		{"negative rows", le(64, 4, -1, 2, 2), format.ErrMalformed},
		{"cut in strings", le(64, 4, 1, 1, 1, 10), format.ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHeader(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseChipType(t *testing.T) {
	tests := []struct {
		name, text, want string
	}{
		{"with extension", "a\x14 \x14 HG-U133A.1sq \x14 x", "HG-U133A"},
		{"no dot", "a\x14 \x14 Mapping10K \x14 x", "Mapping10K"},
		{"one delimiter", "a\x14 HG.1sq", ""},
		{"none", "DatHeader=plain", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseChipType(tt.text); got != tt.want {
				t.Errorf("parseChipType(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	got := parseParams("Percentile:75;CellMargin:2;OutlierHigh:1.500")
	want := []Param{{"Percentile", "75"}, {"CellMargin", "2"}, {"OutlierHigh", "1.500"}}
	if len(got) != len(want) {
		t.Fatalf("parseParams = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("param %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	got = parseParams("Mode=fast Scale=1.0 Mode=slow")
	if len(got) != 2 || got[0] != (Param{"Mode", "fast"}) || got[1] != (Param{"Scale", "1.0"}) {
		t.Errorf("repeated tag = %+v", got)
	}
	if parseParams("") != nil {
		t.Error("empty parameters produced values")
	}
}

func TestParseGrid(t *testing.T) {
	text := "Cols=2\nGridCornerUL=1 2\nGridCornerUR=3 4\nGridCornerLR=5 6\nGridCornerLL=7 8\nAxis-invertX=0\n"
	g := parseGrid(text)
	want := GridCorners{Point{1, 2}, Point{3, 4}, Point{5, 6}, Point{7, 8}}
	if g != want {
		t.Errorf("parseGrid = %+v, want %+v", g, want)
	}
	if g := parseGrid("GridCornerUL=1 2\nGridCornerUR=3"); g != (GridCorners{}) {
		t.Errorf("partial grid = %+v, want zero", g)
	}
}
