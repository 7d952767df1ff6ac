package cdf

import "strings"

// ProbeSetType is the kind of unit a probe set describes.
type ProbeSetType uint16

const (
	UnknownProbeSet ProbeSetType = iota
	ExpressionProbeSet
	GenotypingProbeSet
	ResequencingProbeSet
	TagProbeSet
)

var probeSetTypeNames = [...]string{"unknown", "expression", "genotyping", "resequencing", "tag"}

func (t ProbeSetType) String() string {
	if int(t) >= len(probeSetTypeNames) {
		return "unknown"
	}
	return probeSetTypeNames[t]
}

// Direction is the strand a probe set or group targets.
type Direction uint8

const (
	NoDirection Direction = iota
	SenseDirection
	AntiSenseDirection
)

func (d Direction) String() string {
	switch d {
	case SenseDirection:
		return "sense"
	case AntiSenseDirection:
		return "antisense"
	default:
		return "none"
	}
}

// Logic selects how a probe's bases classify it as perfect match or mismatch.
type Logic int

const (
	// StandardLogic marks a probe as mismatch when its probe and target
	// bases are equal.
	StandardLogic Logic = iota
	// ComplementaryLogic marks a probe as mismatch when its probe base is
	// the Watson-Crick complement of the target base.
	ComplementaryLogic
)

func (l Logic) String() string {
	if l == ComplementaryLogic {
		return "complementary"
	}
	return "standard"
}

// ParseLogic accepts "standard" or "complementary" in any case.
func ParseLogic(s string) (Logic, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return StandardLogic, true
	case "complementary", "complement":
		return ComplementaryLogic, true
	}
	return StandardLogic, false
}

// IsComplement reports whether a and b form an A/T or C/G pair, ignoring case.
func IsComplement(a, b byte) bool {
	switch upper(a) {
	case 'A':
		return upper(b) == 'T'
	case 'T':
		return upper(b) == 'A'
	case 'C':
		return upper(b) == 'G'
	case 'G':
		return upper(b) == 'C'
	}
	return false
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Probe is one cell of a probe group.
type Probe struct {
	ListIndex int32
	X         uint16
	Y         uint16
	Expos     int32
	PBase     byte
	TBase     byte
}

// IsMismatch classifies the probe under logic. It is derived, never stored.
func (p Probe) IsMismatch(logic Logic) bool {
	if logic == ComplementaryLogic {
		return IsComplement(p.PBase, p.TBase)
	}
	return upper(p.PBase) == upper(p.TBase)
}

// IsPerfectMatch is the inverse of IsMismatch.
func (p Probe) IsPerfectMatch(logic Logic) bool {
	return !p.IsMismatch(logic)
}

// ProbeGroup is the fixed part of a group (block) record.
type ProbeGroup struct {
	NumLists        int32
	NumCells        int32
	NumCellsPerList uint8
	Direction       Direction
	Start           int32
	Stop            int32
	Name            string
}

// ProbeSet is the fixed part of a probe set (unit) record.
type ProbeSet struct {
	Type            ProbeSetType
	Direction       Direction
	NumLists        int32
	NumGroups       int32
	NumCells        int32
	ProbeSetNumber  int32
	NumCellsPerList uint8
}

// QCProbeSetType identifies the purpose of a quality-control probe set.
type QCProbeSetType uint16

const (
	UnknownQC QCProbeSetType = iota
	CheckerboardNegativeQC
	CheckerboardPositiveQC
	HybNegativeQC
	HybPositiveQC
	TextFeaturesNegativeQC
	TextFeaturesPositiveQC
	CentralNegativeQC
	CentralPositiveQC
	GeneExpNegativeQC
	GeneExpPositiveQC
	CycleFidelityNegativeQC
	CycleFidelityPositiveQC
	CentralCrossNegativeQC
	CentralCrossPositiveQC
	CrossHybNegativeQC
	CrossHybPositiveQC
	SpatialNormalizationNegativeQC
	SpatialNormalizationPositiveQC
)

var qcTypeNames = [...]string{
	"unknown",
	"checkerboard_negative", "checkerboard_positive",
	"hyb_negative", "hyb_positive",
	"text_features_negative", "text_features_positive",
	"central_negative", "central_positive",
	"gene_exp_negative", "gene_exp_positive",
	"cycle_fidelity_negative", "cycle_fidelity_positive",
	"central_cross_negative", "central_cross_positive",
	"cross_hyb_negative", "cross_hyb_positive",
	"spatial_normalization_negative", "spatial_normalization_positive",
}

func (t QCProbeSetType) String() string {
	if int(t) >= len(qcTypeNames) {
		return "unknown"
	}
	return qcTypeNames[t]
}

// QCProbe is one cell of a QC probe set.
type QCProbe struct {
	X            uint16
	Y            uint16
	ProbeLength  uint8
	PerfectMatch bool
	Background   bool
}

// QCProbeSet is the fixed part of a QC probe set record.
type QCProbeSet struct {
	Type     QCProbeSetType
	NumCells int32
}
