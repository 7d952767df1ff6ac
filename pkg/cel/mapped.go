package cel

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/mmap"
)

// MappedRecords serves entries from a memory-mapped XDA file. The masked
// and outlier lists are small and decoded once at open.
type MappedRecords struct {
	arena    *mmap.Arena
	hdr      Header
	outliers CellSet
	masked   CellSet
}

// OpenMapped maps path and decodes its header and sparse tables.
func OpenMapped(path string, sparse bool) (*MappedRecords, error) {
	arena, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := NewMapped(arena, sparse)
	if err != nil {
		arena.Close()
		return nil, err
	}
	return m, nil
}

// NewMapped decodes an already mapped file. The returned records own arena.
func NewMapped(arena *mmap.Arena, sparse bool) (*MappedRecords, error) {
	data, err := arena.Bytes()
	if err != nil {
		return nil, err
	}
	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	m := &MappedRecords{arena: arena, outliers: CellSet{}, masked: CellSet{}}
	if !sparse {
		hdr.NumMasked = 0
		hdr.NumOutliers = 0
	}
	if err := checkSize(hdr, arena.Size()); err != nil {
		return nil, err
	}

	off := hdr.Size() + int64(hdr.NumCells)*EntrySize
	for k := int64(0); k < int64(hdr.NumMasked); k++ {
		m.masked.add(coordIndex(data[off+4*k:], hdr.Cols))
	}
	off += 4 * int64(hdr.NumMasked)
	for k := int64(0); k < int64(hdr.NumOutliers); k++ {
		m.outliers.add(coordIndex(data[off+4*k:], hdr.Cols))
	}
	m.hdr = hdr
	return m, nil
}

// Header returns the decoded header.
func (m *MappedRecords) Header() Header { return m.hdr }

// NumEntries implements Records.
func (m *MappedRecords) NumEntries() int { return int(m.hdr.NumCells) }

// Entry implements Records.
func (m *MappedRecords) Entry(i int) (Entry, error) {
	data, err := m.arena.Bytes()
	if err != nil {
		return Entry{}, err
	}
	if i < 0 || i >= int(m.hdr.NumCells) {
		return Entry{}, fmt.Errorf("cell %d of %d: %w", i, m.hdr.NumCells, format.ErrOutOfRange)
	}
	b, err := binio.Span(data, m.hdr.Size()+int64(i)*EntrySize, EntrySize)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(b), nil
}

// Outliers implements Records.
func (m *MappedRecords) Outliers() CellSet { return m.outliers }

// Masked implements Records.
func (m *MappedRecords) Masked() CellSet { return m.masked }

// Close unmaps the file.
func (m *MappedRecords) Close() error {
	return m.arena.Close()
}
