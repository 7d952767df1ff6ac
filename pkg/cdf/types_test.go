package cdf

import "testing"

func TestProbeMismatchLogic(t *testing.T) {
	tests := []struct {
		p, t         byte
		standardMM   bool
		complementMM bool
	}{
		{'A', 'T', false, true},
		{'T', 'A', false, true},
		{'C', 'G', false, true},
		{'G', 'C', false, true},
		{'A', 'A', true, false},
		{'c', 'C', true, false},
		{'a', 't', false, true},
		{'A', 'C', false, false},
		{'G', 'T', false, false},
	}
	for _, tt := range tests {
		p := Probe{PBase: tt.p, TBase: tt.t}
		if got := p.IsMismatch(StandardLogic); got != tt.standardMM {
			t.Errorf("IsMismatch(%c,%c, standard) = %v, want %v", tt.p, tt.t, got, tt.standardMM)
		}
		if got := p.IsMismatch(ComplementaryLogic); got != tt.complementMM {
			t.Errorf("IsMismatch(%c,%c, complementary) = %v, want %v", tt.p, tt.t, got, tt.complementMM)
		}
		if p.IsPerfectMatch(StandardLogic) == p.IsMismatch(StandardLogic) {
			t.Errorf("IsPerfectMatch(%c,%c) is not the inverse of IsMismatch", tt.p, tt.t)
		}
	}
}

func TestCellSlot(t *testing.T) {
	pm := Probe{PBase: 'A', TBase: 'T'}
	mm := Probe{PBase: 'T', TBase: 'T'}

	// expression: perfect match first within each list of two
	if got := cellSlot(0, 2, ExpressionProbeSet, mm, StandardLogic); got != 1 {
		t.Errorf("expression mm at 0 -> %d, want 1", got)
	}
	if got := cellSlot(1, 2, ExpressionProbeSet, pm, StandardLogic); got != 0 {
		t.Errorf("expression pm at 1 -> %d, want 0", got)
	}
	if got := cellSlot(3, 2, ExpressionProbeSet, mm, StandardLogic); got != 3 {
		t.Errorf("expression mm at 3 -> %d, want 3", got)
	}
	// complementary logic flips which probe is the mismatch
	if got := cellSlot(0, 2, ExpressionProbeSet, pm, ComplementaryLogic); got != 1 {
		t.Errorf("complementary pm at 0 -> %d, want 1", got)
	}

	// other types reverse each list
	want := []int{3, 2, 1, 0, 7, 6, 5, 4}
	for i, w := range want {
		if got := cellSlot(i, 4, GenotypingProbeSet, pm, StandardLogic); got != w {
			t.Errorf("genotyping slot(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestTileMapping(t *testing.T) {
	tests := map[int]ProbeSetType{
		0: UnknownProbeSet,
		1: ResequencingProbeSet,
		2: GenotypingProbeSet,
		3: ExpressionProbeSet,
		4: UnknownProbeSet,
		5: ResequencingProbeSet,
		6: ResequencingProbeSet,
		7: TagProbeSet,
		8: UnknownProbeSet,
	}
	for tile, want := range tests {
		if got := probeSetTypeFromTile(tile); got != want {
			t.Errorf("probeSetTypeFromTile(%d) = %v, want %v", tile, got, want)
		}
	}
}

func TestEnumStrings(t *testing.T) {
	if ExpressionProbeSet.String() != "expression" {
		t.Errorf("ExpressionProbeSet.String() = %q", ExpressionProbeSet.String())
	}
	if SpatialNormalizationPositiveQC.String() != "spatial_normalization_positive" {
		t.Errorf("QC String() = %q", SpatialNormalizationPositiveQC.String())
	}
	if int(SpatialNormalizationPositiveQC) != 18 {
		t.Errorf("QC type count = %d, want 19 values", SpatialNormalizationPositiveQC+1)
	}
	if AntiSenseDirection.String() != "antisense" {
		t.Errorf("AntiSenseDirection.String() = %q", AntiSenseDirection.String())
	}
	if l, ok := ParseLogic("Complementary"); !ok || l != ComplementaryLogic {
		t.Errorf("ParseLogic(Complementary) = %v, %v", l, ok)
	}
	if _, ok := ParseLogic("bogus"); ok {
		t.Error("ParseLogic(bogus) ok")
	}
}
