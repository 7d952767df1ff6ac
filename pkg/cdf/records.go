package cdf

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/format"
)

// Records answers record-level queries. OwnedRecords holds a fully decoded
// file in memory; MappedRecords decodes on demand from a memory mapping.
// The File facade picks one implementation at open time.
type Records interface {
	NumProbeSets() int
	NumQCProbeSets() int
	ProbeSetName(i int) (string, error)
	ProbeSet(i int) (ProbeSet, error)
	Group(set, g int) (ProbeGroup, error)
	Probe(set, g, c int) (Probe, error)
	QCProbeSet(i int) (QCProbeSet, error)
	QCProbe(i, c int) (QCProbe, error)
	Close() error
}

type ownedGroup struct {
	ProbeGroup
	cells []Probe
}

type ownedSet struct {
	ProbeSet
	groups []ownedGroup
}

type ownedQC struct {
	QCProbeSet
	cells []QCProbe
}

// OwnedRecords is a decoded CDF held entirely in memory.
type OwnedRecords struct {
	names    []string
	sets     []ownedSet
	qc       []ownedQC
	declared int // probe sets in the header; the tail past sets is zero
	closed   bool
}

// unreached stands in for probe sets a text file declares but never lists.
var unreached ownedSet

// NumProbeSets implements Records.
func (o *OwnedRecords) NumProbeSets() int { return max(len(o.sets), o.declared) }

// NumQCProbeSets implements Records.
func (o *OwnedRecords) NumQCProbeSets() int { return len(o.qc) }

func (o *OwnedRecords) set(i int) (*ownedSet, error) {
	if o.closed {
		return nil, format.ErrClosed
	}
	if i < 0 || i >= o.NumProbeSets() {
		return nil, fmt.Errorf("probe set %d of %d: %w", i, o.NumProbeSets(), format.ErrOutOfRange)
	}
	if i >= len(o.sets) {
		return &unreached, nil
	}
	return &o.sets[i], nil
}

func (o *OwnedRecords) group(set, g int) (*ownedGroup, error) {
	s, err := o.set(set)
	if err != nil {
		return nil, err
	}
	if g < 0 || g >= len(s.groups) {
		return nil, fmt.Errorf("group %d of %d in probe set %d: %w", g, len(s.groups), set, format.ErrOutOfRange)
	}
	return &s.groups[g], nil
}

// ProbeSetName implements Records.
func (o *OwnedRecords) ProbeSetName(i int) (string, error) {
	if _, err := o.set(i); err != nil {
		return "", err
	}
	if i >= len(o.names) {
		return "", nil
	}
	return o.names[i], nil
}

// ProbeSet implements Records.
func (o *OwnedRecords) ProbeSet(i int) (ProbeSet, error) {
	s, err := o.set(i)
	if err != nil {
		return ProbeSet{}, err
	}
	return s.ProbeSet, nil
}

// Group implements Records.
func (o *OwnedRecords) Group(set, g int) (ProbeGroup, error) {
	grp, err := o.group(set, g)
	if err != nil {
		return ProbeGroup{}, err
	}
	return grp.ProbeGroup, nil
}

// Probe implements Records.
func (o *OwnedRecords) Probe(set, g, c int) (Probe, error) {
	grp, err := o.group(set, g)
	if err != nil {
		return Probe{}, err
	}
	if c < 0 || c >= len(grp.cells) {
		return Probe{}, fmt.Errorf("cell %d of %d: %w", c, len(grp.cells), format.ErrOutOfRange)
	}
	return grp.cells[c], nil
}

// QCProbeSet implements Records.
func (o *OwnedRecords) QCProbeSet(i int) (QCProbeSet, error) {
	if o.closed {
		return QCProbeSet{}, format.ErrClosed
	}
	if i < 0 || i >= len(o.qc) {
		return QCProbeSet{}, fmt.Errorf("QC probe set %d of %d: %w", i, len(o.qc), format.ErrOutOfRange)
	}
	return o.qc[i].QCProbeSet, nil
}

// QCProbe implements Records.
func (o *OwnedRecords) QCProbe(i, c int) (QCProbe, error) {
	if _, err := o.QCProbeSet(i); err != nil {
		return QCProbe{}, err
	}
	cells := o.qc[i].cells
	if c < 0 || c >= len(cells) {
		return QCProbe{}, fmt.Errorf("QC cell %d of %d: %w", c, len(cells), format.ErrOutOfRange)
	}
	return cells[c], nil
}

// Close drops the decoded records.
func (o *OwnedRecords) Close() error {
	o.closed = true
	o.names = nil
	o.sets = nil
	o.qc = nil
	return nil
}

// Names returns the probe set names in file order.
func (o *OwnedRecords) Names() []string {
	return o.names
}

// Validate checks the per-set and per-group cell count invariants.
func (o *OwnedRecords) Validate() error {
	for i := range o.sets {
		s := &o.sets[i]
		if int(s.NumGroups) != len(s.groups) {
			return fmt.Errorf("probe set %d declares %d groups, has %d: %w", i, s.NumGroups, len(s.groups), format.ErrMalformed)
		}
		var total int32
		for g := range s.groups {
			grp := &s.groups[g]
			if int(grp.NumCells) != len(grp.cells) {
				return fmt.Errorf("probe set %d group %d declares %d cells, has %d: %w", i, g, grp.NumCells, len(grp.cells), format.ErrMalformed)
			}
			total += grp.NumCells
		}
		if total != s.NumCells {
			return fmt.Errorf("probe set %d declares %d cells, groups sum to %d: %w", i, s.NumCells, total, format.ErrMalformed)
		}
	}
	return nil
}
