package cdf

import (
	"fmt"
	"io"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// OffsetIndex holds the absolute file offsets of every QC probe set and
// probe set record, read from the table that follows the name block.
type OffsetIndex struct {
	qc   []int32
	sets []int32
}

// BuildIndex reads numQC then numSets little-endian int32 offsets from r.
func BuildIndex(r io.Reader, numQC, numSets int32) (OffsetIndex, error) {
	return buildIndex(binio.NewReader(r), numQC, numSets)
}

func buildIndex(br *binio.Reader, numQC, numSets int32) (OffsetIndex, error) {
	if numQC < 0 || numSets < 0 {
		return OffsetIndex{}, fmt.Errorf("negative offset count (%d, %d): %w", numQC, numSets, format.ErrMalformed)
	}
	if err := br.Need(4*(int64(numQC)+int64(numSets)), "offset table"); err != nil {
		return OffsetIndex{}, err
	}
	idx := OffsetIndex{
		qc:   make([]int32, 0, br.Prealloc(int(numQC))),
		sets: make([]int32, 0, br.Prealloc(int(numSets))),
	}
	for i := range int(numQC) {
		v, err := br.I32()
		if err != nil {
			return OffsetIndex{}, fmt.Errorf("read QC offset %d: %w", i, err)
		}
		idx.qc = append(idx.qc, v)
	}
	for i := range int(numSets) {
		v, err := br.I32()
		if err != nil {
			return OffsetIndex{}, fmt.Errorf("read probe set offset %d: %w", i, err)
		}
		idx.sets = append(idx.sets, v)
	}
	return idx, nil
}

// decodeIndex reads the offset table from a mapping starting at off.
func decodeIndex(data []byte, off int64, numQC, numSets int32) (OffsetIndex, error) {
	n := int(numQC) + int(numSets)
	b, err := binio.Span(data, off, 4*n)
	if err != nil {
		return OffsetIndex{}, fmt.Errorf("read offset table: %w", err)
	}
	idx := OffsetIndex{
		qc:   make([]int32, numQC),
		sets: make([]int32, numSets),
	}
	for i := range idx.qc {
		idx.qc[i] = binio.FromLittleEndianI32(b[4*i:])
	}
	base := 4 * int(numQC)
	for i := range idx.sets {
		idx.sets[i] = binio.FromLittleEndianI32(b[base+4*i:])
	}
	return idx, nil
}

// NumQC returns the number of QC probe set offsets.
func (x OffsetIndex) NumQC() int { return len(x.qc) }

// NumProbeSets returns the number of probe set offsets.
func (x OffsetIndex) NumProbeSets() int { return len(x.sets) }

// QC returns the absolute offset of QC probe set i.
func (x OffsetIndex) QC(i int) (int64, error) {
	if i < 0 || i >= len(x.qc) {
		return 0, fmt.Errorf("QC probe set %d of %d: %w", i, len(x.qc), format.ErrOutOfRange)
	}
	return int64(x.qc[i]), nil
}

// ProbeSet returns the absolute offset of probe set i.
func (x OffsetIndex) ProbeSet(i int) (int64, error) {
	if i < 0 || i >= len(x.sets) {
		return 0, fmt.Errorf("probe set %d of %d: %w", i, len(x.sets), format.ErrOutOfRange)
	}
	return int64(x.sets[i]), nil
}

// Validate checks that every offset points inside a file of size bytes
// with room for at least the fixed record.
func (x OffsetIndex) Validate(size int64) error {
	for i, off := range x.qc {
		if off < 0 || int64(off)+QCProbeSetSize > size {
			return fmt.Errorf("QC probe set %d offset %d beyond %d bytes: %w", i, off, size, format.ErrMalformed)
		}
	}
	for i, off := range x.sets {
		if off < 0 || int64(off)+ProbeSetSize > size {
			return fmt.Errorf("probe set %d offset %d beyond %d bytes: %w", i, off, size, format.ErrMalformed)
		}
	}
	return nil
}
