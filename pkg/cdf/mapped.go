package cdf

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/mmap"
)

// MappedRecords answers queries straight from a memory-mapped XDA file.
// Nothing past the header and offset table is decoded until asked for.
type MappedRecords struct {
	arena    *mmap.Arena
	hdr      Header
	namesOff int64
	index    OffsetIndex
}

// OpenMapped maps an XDA file and reads its header and offset table. There
// is no fallback to streaming: a mapping failure is returned as
// format.ErrMapping.
func OpenMapped(path string) (*MappedRecords, error) {
	arena, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := newMapped(arena)
	if err != nil {
		arena.Close()
		return nil, err
	}
	return m, nil
}

// NewMapped reads the header and offset table of an already mapped file.
// The returned records own arena.
func NewMapped(arena *mmap.Arena) (*MappedRecords, error) {
	return newMapped(arena)
}

func newMapped(arena *mmap.Arena) (*MappedRecords, error) {
	data, err := arena.Bytes()
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	namesOff := hdr.Size()
	indexOff := namesOff + int64(hdr.NumProbeSets)*ProbeSetNameSize
	index, err := decodeIndex(data, indexOff, hdr.NumQCProbeSets, hdr.NumProbeSets)
	if err != nil {
		return nil, err
	}
	if err := index.Validate(arena.Size()); err != nil {
		return nil, err
	}

	return &MappedRecords{
		arena:    arena,
		hdr:      hdr,
		namesOff: namesOff,
		index:    index,
	}, nil
}

// Header returns the decoded file header.
func (m *MappedRecords) Header() Header { return m.hdr }

// Index returns the offset table.
func (m *MappedRecords) Index() OffsetIndex { return m.index }

// Size returns the mapped length.
func (m *MappedRecords) Size() int64 { return m.arena.Size() }

// NumProbeSets implements Records.
func (m *MappedRecords) NumProbeSets() int { return m.index.NumProbeSets() }

// NumQCProbeSets implements Records.
func (m *MappedRecords) NumQCProbeSets() int { return m.index.NumQC() }

// ProbeSetName implements Records.
func (m *MappedRecords) ProbeSetName(i int) (string, error) {
	if i < 0 || i >= m.NumProbeSets() {
		return "", fmt.Errorf("probe set %d of %d: %w", i, m.NumProbeSets(), format.ErrOutOfRange)
	}
	data, err := m.arena.Bytes()
	if err != nil {
		return "", err
	}
	b, err := binio.Span(data, m.namesOff+int64(i)*ProbeSetNameSize, ProbeSetNameSize)
	if err != nil {
		return "", err
	}
	return binio.TrimNUL(b), nil
}

// ProbeSet implements Records.
func (m *MappedRecords) ProbeSet(i int) (ProbeSet, error) {
	off, err := m.index.ProbeSet(i)
	if err != nil {
		return ProbeSet{}, err
	}
	data, err := m.arena.Bytes()
	if err != nil {
		return ProbeSet{}, err
	}
	b, err := binio.Span(data, off, ProbeSetSize)
	if err != nil {
		return ProbeSet{}, fmt.Errorf("probe set %d: %w", i, err)
	}
	ps := decodeProbeSet(b)
	if ps.NumGroups < 0 {
		return ProbeSet{}, fmt.Errorf("probe set %d has %d groups: %w", i, ps.NumGroups, format.ErrMalformed)
	}
	if end := off + ProbeSetSize + int64(ps.NumGroups)*ProbeGroupSize; end > int64(len(data)) {
		return ProbeSet{}, fmt.Errorf("probe set %d groups end at %d of %d bytes: %w", i, end, len(data), format.ErrTruncated)
	}
	return ps, nil
}

// groupOffset walks the groups of a set, each a fixed record followed by
// its cells, to find the start of group g.
func (m *MappedRecords) groupOffset(data []byte, set, g int) (int64, error) {
	ps, err := m.ProbeSet(set)
	if err != nil {
		return 0, err
	}
	if g < 0 || g >= int(ps.NumGroups) {
		return 0, fmt.Errorf("group %d of %d in probe set %d: %w", g, ps.NumGroups, set, format.ErrOutOfRange)
	}
	off, _ := m.index.ProbeSet(set)
	off += ProbeSetSize
	for k := 0; k < g; k++ {
		cells, err := binio.I32At(data, off+groupNumCellsOffset)
		if err != nil {
			return 0, fmt.Errorf("probe set %d group %d: %w", set, k, err)
		}
		if cells < 0 {
			return 0, fmt.Errorf("probe set %d group %d has %d cells: %w", set, k, cells, format.ErrMalformed)
		}
		off += ProbeGroupSize + int64(cells)*ProbeSize
	}
	return off, nil
}

// Group implements Records. Start and Stop are recomputed from the first
// and last cell, matching the streaming reader.
func (m *MappedRecords) Group(set, g int) (ProbeGroup, error) {
	data, err := m.arena.Bytes()
	if err != nil {
		return ProbeGroup{}, err
	}
	off, err := m.groupOffset(data, set, g)
	if err != nil {
		return ProbeGroup{}, err
	}
	b, err := binio.Span(data, off, ProbeGroupSize)
	if err != nil {
		return ProbeGroup{}, fmt.Errorf("probe set %d group %d: %w", set, g, err)
	}
	grp := decodeProbeGroup(b)
	if grp.NumCells < 0 {
		return ProbeGroup{}, fmt.Errorf("probe set %d group %d has %d cells: %w", set, g, grp.NumCells, format.ErrMalformed)
	}
	if grp.NumCells > 0 {
		first, err := binio.I32At(data, off+ProbeGroupSize)
		if err != nil {
			return ProbeGroup{}, err
		}
		last, err := binio.I32At(data, off+ProbeGroupSize+int64(grp.NumCells-1)*ProbeSize)
		if err != nil {
			return ProbeGroup{}, err
		}
		grp.Start = first
		if grp.NumCells > 1 {
			grp.Stop = last
		}
	}
	return grp, nil
}

// Probe implements Records.
func (m *MappedRecords) Probe(set, g, c int) (Probe, error) {
	data, err := m.arena.Bytes()
	if err != nil {
		return Probe{}, err
	}
	off, err := m.groupOffset(data, set, g)
	if err != nil {
		return Probe{}, err
	}
	cells, err := binio.I32At(data, off+groupNumCellsOffset)
	if err != nil {
		return Probe{}, err
	}
	if c < 0 || c >= int(cells) {
		return Probe{}, fmt.Errorf("cell %d of %d: %w", c, cells, format.ErrOutOfRange)
	}
	b, err := binio.Span(data, off+ProbeGroupSize+int64(c)*ProbeSize, ProbeSize)
	if err != nil {
		return Probe{}, err
	}
	return decodeProbe(b), nil
}

// QCProbeSet implements Records.
func (m *MappedRecords) QCProbeSet(i int) (QCProbeSet, error) {
	off, err := m.index.QC(i)
	if err != nil {
		return QCProbeSet{}, err
	}
	data, err := m.arena.Bytes()
	if err != nil {
		return QCProbeSet{}, err
	}
	b, err := binio.Span(data, off, QCProbeSetSize)
	if err != nil {
		return QCProbeSet{}, fmt.Errorf("QC probe set %d: %w", i, err)
	}
	return decodeQCProbeSet(b), nil
}

// QCProbe implements Records.
func (m *MappedRecords) QCProbe(i, c int) (QCProbe, error) {
	qc, err := m.QCProbeSet(i)
	if err != nil {
		return QCProbe{}, err
	}
	if c < 0 || c >= int(qc.NumCells) {
		return QCProbe{}, fmt.Errorf("QC cell %d of %d: %w", c, qc.NumCells, format.ErrOutOfRange)
	}
	off, _ := m.index.QC(i)
	data, err := m.arena.Bytes()
	if err != nil {
		return QCProbe{}, err
	}
	b, err := binio.Span(data, off+QCProbeSetSize+int64(c)*QCProbeSize, QCProbeSize)
	if err != nil {
		return QCProbe{}, err
	}
	return decodeQCProbe(b), nil
}

// Close unmaps the file. Later queries fail with format.ErrClosed.
func (m *MappedRecords) Close() error {
	return m.arena.Close()
}
