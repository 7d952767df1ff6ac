package cdf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eunmann/affxfusion/pkg/fixture"
	"github.com/eunmann/affxfusion/pkg/format"
)

const hugeCount = 2000000000

// oneSet encodes a file with a single probe set whose only group record
// declares cells cells and no cell records follow.
func oneSet(groups, cells int32) []byte {
	var buf bytes.Buffer
	buf.Write(encodeHeader(format.MagicCDF, 1, 5, 5, 1, 0, ""))
	buf.Write(make([]byte, ProbeSetNameSize))
	le := func(v any) { binary.Write(&buf, binary.LittleEndian, v) }
	le(int32(buf.Len() + 4))

	le(uint16(3)) // expression
	le(uint8(1))
	le(int32(1))
	le(groups)
	le(cells)
	le(int32(1))
	le(uint8(2))

	le(int32(1))
	le(cells)
	le(uint8(2))
	le(uint8(1))
	le(int32(0))
	le(int32(0))
	buf.Write(make([]byte, GroupNameSize))
	return buf.Bytes()
}

func TestOversizedCountsFail(t *testing.T) {
	refClaim := encodeHeader(format.MagicCDF, 1, 5, 5, 0, 0, "")
	binary.LittleEndian.PutUint32(refClaim[len(refClaim)-4:], hugeCount)

	tests := []struct {
		name string
		data []byte
	}{
		{"probe sets", encodeHeader(format.MagicCDF, 1, 5, 5, hugeCount, 0, "")},
		{"QC probe sets", encodeHeader(format.MagicCDF, 1, 5, 5, 0, hugeCount, "")},
		{"reference length", refClaim},
		{"groups", oneSet(hugeCount, 0)},
		{"group cells", oneSet(1, hugeCount)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "huge.CDF")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			f := New(Options{Mode: format.ModeStream})
			f.SetFileName(path)
			if f.Read() {
				t.Fatal("Read() succeeded")
			}
			if !errors.Is(f.Err(), format.ErrTruncated) {
				t.Errorf("Err() = %v, want ErrTruncated", f.Err())
			}

			// a reader that cannot report its length grows lists as
			// records arrive and runs out of input instead
			_, _, err := ParseXDA(io.MultiReader(bytes.NewReader(tt.data)))
			if !errors.Is(err, format.ErrTruncated) {
				t.Errorf("ParseXDA err = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestMappedOversizedCounts(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"groups", oneSet(hugeCount, 0), format.ErrTruncated},
		{"negative group cells", oneSet(1, -1), format.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "huge.CDF")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			f := New(Options{Mode: format.ModeMapped})
			f.SetFileName(path)
			if !f.Read() {
				t.Fatalf("Read(): %v", f.Err())
			}
			defer f.Close()
			_, err := f.CellIndices(0)
			if !errors.Is(err, tt.want) {
				t.Errorf("CellIndices err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseTextOversizedCounts(t *testing.T) {
	t.Run("units", func(t *testing.T) {
		input := strings.Replace(textHeaderV2, "NumberOfUnits=2", "NumberOfUnits=2000000000", 1) + expressionUnit
		_, recs, err := parseText(t, input)
		if err != nil {
			t.Fatalf("ParseText: %v", err)
		}
		if recs.NumProbeSets() != hugeCount {
			t.Errorf("NumProbeSets() = %d, want %d", recs.NumProbeSets(), hugeCount)
		}
		ps, err := recs.ProbeSet(hugeCount - 1)
		if err != nil || ps != (ProbeSet{}) {
			t.Errorf("ProbeSet(last) = %+v, %v, want zero", ps, err)
		}
		if _, err := recs.ProbeSet(hugeCount); !errors.Is(err, format.ErrOutOfRange) {
			t.Errorf("ProbeSet(past end) err = %v, want ErrOutOfRange", err)
		}
	})

	tests := []struct {
		name  string
		input string
	}{
		{"block cells", textHeaderV2 + strings.Replace(expressionUnit, "NumAtoms=2\nNumCells=4\nStart", "NumAtoms=2\nNumCells=2000000000\nStart", 1)},
		{"QC units", strings.Replace(textHeaderV2, "NumQCUnits=0", "NumQCUnits=2000000000", 1) + "[QCUnit1]\nType=1\nNumberCells=1\nCellHeader=X\tY\tPROBE\tPLEN\tATOM\tINDEX\tMATCH\tBG\nCell1=0\t0\tN\t25\t0\t0\t0\t0\n\n"},
		{"QC cells", strings.Replace(textHeaderV2, "NumQCUnits=0", "NumQCUnits=1", 1) + "[QCUnit1]\nType=1\nNumberCells=2000000000\nCellHeader=X\tY\tPROBE\tPLEN\tATOM\tINDEX\tMATCH\tBG\nCell1=0\t0\tN\t25\t0\t0\t0\t0\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseText(t, tt.input)
			if !errors.Is(err, format.ErrTruncated) {
				t.Errorf("err = %v, want ErrTruncated", err)
			}
		})
	}
}

func TestSingleCellGroupKeepsStoredStop(t *testing.T) {
	c := &fixture.CDF{
		ChipName: "Single",
		Cols:     4,
		Rows:     4,
		Units: []fixture.CDFUnit{{
			Name:         "solo_at",
			Type:         fixture.TypeExpression,
			NumLists:     1,
			CellsPerList: 2,
			Number:       1,
			Groups: []fixture.CDFGroup{{
				Name:       "solo_at",
				NumLists:   1,
				Cells:      []fixture.CDFCell{{X: 1, Y: 2, ListIndex: 5, PBase: 'A', TBase: 'T'}},
				StoredStop: 9,
			}},
		}},
	}
	xda := writeXDA(t, c, "single.CDF")
	files := map[string]*File{
		"stream": openFile(t, xda, format.ModeStream),
		"mapped": openFile(t, xda, format.ModeMapped),
		"text":   openFile(t, writeText(t, c, "single_text.CDF"), format.ModeAuto),
	}
	for name, f := range files {
		t.Run(name, func(t *testing.T) {
			grp, err := f.Records().Group(0, 0)
			if err != nil {
				t.Fatal(err)
			}
			if grp.Start != 5 || grp.Stop != 9 {
				t.Errorf("Start, Stop = %d, %d, want 5, 9", grp.Start, grp.Stop)
			}
		})
	}
}
