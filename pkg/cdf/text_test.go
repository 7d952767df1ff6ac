package cdf

import (
	"errors"
	"strings"
	"testing"

	"github.com/eunmann/affxfusion/pkg/format"
)

const textHeaderV2 = `[CDF]
Version=GC2.0

[Chip]
Name=Tiny
Rows=4
Cols=4
NumberOfUnits=2
MaxUnit=2
NumQCUnits=0
ChipReference=

`

const expressionUnit = `[Unit1]
Name=NONE
Direction=1
NumAtoms=2
NumCells=4
UnitNumber=7
UnitType=3
NumberBlocks=1

[Unit1_Block1]
Name=gene_at
BlockNumber=1
NumAtoms=2
NumCells=4
StartPosition=99
StopPosition=99
CellHeader=X	Y	PROBE	FEAT	QUAL	EXPOS	POS	CBASE	PBASE	TBASE	ATOM	INDEX	CODONIND	CODON	REGIONTYPE	REGION
Cell1=0	0	N	control	gene_at	0	13	A	A	A	0	0	-1	-1	99	
Cell2=1	0	N	control	gene_at	0	13	A	T	A	0	1	-1	-1	99	
Cell3=2	0	N	control	gene_at	1	13	C	G	C	1	2	-1	-1	99	
Cell4=3	0	N	control	gene_at	1	13	C	C	C	1	3	-1	-1	99	

`

func parseText(t *testing.T, s string) (Header, *OwnedRecords, error) {
	t.Helper()
	return ParseText(strings.NewReader(s), StandardLogic, false)
}

func TestParseTextExpressionReorders(t *testing.T) {
	hdr, recs, err := parseText(t, textHeaderV2+expressionUnit)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if hdr.Version != 2 || hdr.Cols != 4 || hdr.Rows != 4 || hdr.NumProbeSets != 2 {
		t.Fatalf("header = %+v", hdr)
	}

	name, _ := recs.ProbeSetName(0)
	if name != "gene_at" {
		t.Errorf("expression unit name = %q, want block name", name)
	}
	ps, _ := recs.ProbeSet(0)
	if ps.Type != ExpressionProbeSet || ps.NumCellsPerList != 2 || ps.ProbeSetNumber != 7 {
		t.Errorf("probe set = %+v", ps)
	}
	grp, _ := recs.Group(0, 0)
	if grp.Start != 0 || grp.Stop != 1 {
		t.Errorf("group range = %d..%d, want 0..1 from the cells", grp.Start, grp.Stop)
	}

	// each list holds the perfect match first
	wantX := []uint16{1, 0, 2, 3}
	for c, x := range wantX {
		p, err := recs.Probe(0, 0, c)
		if err != nil {
			t.Fatal(err)
		}
		if p.X != x {
			t.Errorf("cell %d x = %d, want %d", c, p.X, x)
		}
		if p.IsMismatch(StandardLogic) != (c%2 == 1) {
			t.Errorf("cell %d mismatch = %v", c, p.IsMismatch(StandardLogic))
		}
	}
}

func TestParseTextEndsEarly(t *testing.T) {
	// NumberOfUnits says 2 but the input stops after the first unit
	_, recs, err := parseText(t, textHeaderV2+expressionUnit)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	ps, err := recs.ProbeSet(1)
	if err != nil {
		t.Fatal(err)
	}
	if ps != (ProbeSet{}) {
		t.Errorf("unreached unit = %+v, want zero", ps)
	}
}

func TestParseTextTruncatedUnit(t *testing.T) {
	cut := textHeaderV2 + expressionUnit[:strings.Index(expressionUnit, "Cell3=")]
	_, _, err := parseText(t, cut)
	if !errors.Is(err, format.ErrTruncated) {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestParseTextDefaultCellsPerList(t *testing.T) {
	unit := strings.Replace(expressionUnit, "UnitType=3", "UnitType=1", 1)
	_, recs, err := parseText(t, textHeaderV2+unit)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	ps, _ := recs.ProbeSet(0)
	if ps.Type != ResequencingProbeSet || ps.NumCellsPerList != 4 {
		t.Fatalf("probe set = %+v", ps)
	}
	name, _ := recs.ProbeSetName(0)
	if name != "NONE" {
		t.Errorf("name = %q", name)
	}
	// a resequencing list of four is stored reversed
	wantX := []uint16{3, 2, 1, 0}
	for c, x := range wantX {
		p, _ := recs.Probe(0, 0, c)
		if p.X != x {
			t.Errorf("cell %d x = %d, want %d", c, p.X, x)
		}
	}
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", format.ErrTruncated},
		{"wrong marker", "[CEL]\nVersion=3\n", format.ErrFormatMismatch},
		{"unknown version", "[CDF]\nVersion=GC9.0\n", format.ErrUnsupportedVersion},
		{"bad rows", strings.Replace(textHeaderV2, "Rows=4", "Rows=four", 1), format.ErrMalformed},
		{"missing equals", strings.Replace(textHeaderV2, "Cols=4", "Cols 4", 1), format.ErrMalformed},
		{"bad cell", textHeaderV2 + strings.Replace(expressionUnit, "Cell2=1\t0", "Cell2=x\t0", 1), format.ErrMalformed},
		{"slot collision", textHeaderV2 + strings.Replace(expressionUnit, "Cell2=1\t0\tN\tcontrol\tgene_at\t0\t13\tA\tT", "Cell2=1\t0\tN\tcontrol\tgene_at\t0\t13\tA\tA", 1), format.ErrMalformed},
		{"too many units", strings.Replace(textHeaderV2, "NumberOfUnits=2", "NumberOfUnits=0", 1) + expressionUnit, format.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseText(t, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseTextVersionOne(t *testing.T) {
	input := "[CDF]\nVersion=GC1.0\n\n[Chip]\nName=Old\nRows=2\nCols=3\nNumberOfUnits=0\nMaxUnit=0\n"
	hdr, recs, err := parseText(t, input)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if hdr.Version != 1 || hdr.Cols != 3 || hdr.Rows != 2 || hdr.NumQCProbeSets != 0 {
		t.Errorf("header = %+v", hdr)
	}
	if recs.NumProbeSets() != 0 {
		t.Errorf("NumProbeSets() = %d", recs.NumProbeSets())
	}
}

func TestParseTextQCUnits(t *testing.T) {
	input := strings.Replace(textHeaderV2, "NumQCUnits=0", "NumQCUnits=1", 1) +
		"[QCUnit1]\nType=9\nNumberCells=2\nCellHeader=X\tY\tPROBE\tPLEN\tINDEX\tMATCH\tBKGD\n" +
		"Cell1=1\t2\tN\t25\t9\t1\t1\nCell2=3\t0\tN\t21\t3\t0\t0\n\n" + expressionUnit
	hdr, recs, err := parseText(t, input)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if hdr.NumQCProbeSets != 1 {
		t.Fatalf("NumQCProbeSets = %d", hdr.NumQCProbeSets)
	}
	qc, _ := recs.QCProbeSet(0)
	if qc.Type != GeneExpNegativeQC || qc.NumCells != 2 {
		t.Errorf("QC probe set = %+v", qc)
	}
	p, _ := recs.QCProbe(0, 0)
	// the text encoding leaves the match and background flags unset
	if p != (QCProbe{X: 1, Y: 2, ProbeLength: 25}) {
		t.Errorf("QC probe = %+v", p)
	}
}

func TestParseTextHeaderOnly(t *testing.T) {
	hdr, recs, err := ParseText(strings.NewReader(textHeaderV2+"garbage"), StandardLogic, true)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if recs != nil || hdr.NumProbeSets != 2 {
		t.Errorf("header-only parse = %+v, %v", hdr, recs)
	}
}
