package cdf

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/format"
)

// ProbeSetView is a read-only handle on one probe set. It aliases the
// owning File and stops working once that File is closed or re-read.
type ProbeSetView struct {
	ProbeSet
	f     *File
	gen   uint64
	index int
}

// Index returns the probe set's position in the file.
func (v ProbeSetView) Index() int { return v.index }

func (v ProbeSetView) records() (Records, error) {
	if v.f == nil || v.f.gen != v.gen || v.f.recs == nil {
		return nil, format.ErrClosed
	}
	return v.f.recs, nil
}

// Name returns the probe set name.
func (v ProbeSetView) Name() (string, error) {
	recs, err := v.records()
	if err != nil {
		return "", err
	}
	return recs.ProbeSetName(v.index)
}

// Group returns a view of group g.
func (v ProbeSetView) Group(g int) (GroupView, error) {
	recs, err := v.records()
	if err != nil {
		return GroupView{}, err
	}
	if g < 0 || g >= int(v.NumGroups) {
		return GroupView{}, fmt.Errorf("group %d of %d: %w", g, v.NumGroups, format.ErrOutOfRange)
	}
	grp, err := recs.Group(v.index, g)
	if err != nil {
		return GroupView{}, err
	}
	return GroupView{ProbeGroup: grp, f: v.f, gen: v.gen, set: v.index, index: g}, nil
}

// GroupView is a read-only handle on one probe group.
type GroupView struct {
	ProbeGroup
	f     *File
	gen   uint64
	set   int
	index int
}

// Index returns the group's position within its probe set.
func (v GroupView) Index() int { return v.index }

// ProbeSetIndex returns the index of the owning probe set.
func (v GroupView) ProbeSetIndex() int { return v.set }

func (v GroupView) records() (Records, error) {
	if v.f == nil || v.f.gen != v.gen || v.f.recs == nil {
		return nil, format.ErrClosed
	}
	return v.f.recs, nil
}

// Cell returns cell c.
func (v GroupView) Cell(c int) (Probe, error) {
	recs, err := v.records()
	if err != nil {
		return Probe{}, err
	}
	if c < 0 || c >= int(v.NumCells) {
		return Probe{}, fmt.Errorf("cell %d of %d: %w", c, v.NumCells, format.ErrOutOfRange)
	}
	return recs.Probe(v.set, v.index, c)
}

// Cells returns every cell of the group in storage order.
func (v GroupView) Cells() ([]Probe, error) {
	out := make([]Probe, v.NumCells)
	for c := range out {
		p, err := v.Cell(c)
		if err != nil {
			return nil, err
		}
		out[c] = p
	}
	return out, nil
}

// IsMismatch classifies cell c with the owning file's logic.
func (v GroupView) IsMismatch(c int) (bool, error) {
	p, err := v.Cell(c)
	if err != nil {
		return false, err
	}
	return p.IsMismatch(v.f.opts.Logic), nil
}

// QCProbeSetView is a read-only handle on one QC probe set.
type QCProbeSetView struct {
	QCProbeSet
	f     *File
	gen   uint64
	index int
}

// Index returns the QC probe set's position, or -1 for a type lookup miss.
func (v QCProbeSetView) Index() int { return v.index }

// Cell returns cell c.
func (v QCProbeSetView) Cell(c int) (QCProbe, error) {
	if v.f == nil || v.f.gen != v.gen || v.f.recs == nil {
		return QCProbe{}, format.ErrClosed
	}
	if c < 0 || c >= int(v.NumCells) {
		return QCProbe{}, fmt.Errorf("QC cell %d of %d: %w", c, v.NumCells, format.ErrOutOfRange)
	}
	return v.f.recs.QCProbe(v.index, c)
}
