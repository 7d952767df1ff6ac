package cdf

import (
	"fmt"
	"io"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// ParseXDA decodes a complete XDA file from r into memory.
func ParseXDA(r io.Reader) (Header, *OwnedRecords, error) {
	return parseXDA(binio.NewReader(r))
}

func parseXDA(br *binio.Reader) (Header, *OwnedRecords, error) {
	hdr, err := readHeader(br)
	if err != nil {
		return hdr, nil, fmt.Errorf("read header: %w", err)
	}
	recs, err := parseBody(br, hdr)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, recs, nil
}

// ParseBody decodes the records that follow an already consumed header.
func ParseBody(r io.Reader, hdr Header) (*OwnedRecords, error) {
	return parseBody(binio.NewReader(r), hdr)
}

// minSetBytes is the smallest encoding of one probe set: its name, its
// offset table slot and an empty record.
const minSetBytes = ProbeSetNameSize + 4 + ProbeSetSize

func parseBody(br *binio.Reader, hdr Header) (*OwnedRecords, error) {
	need := int64(hdr.NumProbeSets)*minSetBytes + int64(hdr.NumQCProbeSets)*(4+QCProbeSetSize)
	if err := br.Need(need, "probe set records"); err != nil {
		return nil, err
	}
	nsets, nqc := int(hdr.NumProbeSets), int(hdr.NumQCProbeSets)
	recs := &OwnedRecords{
		names: make([]string, 0, br.Prealloc(nsets)),
		sets:  make([]ownedSet, 0, br.Prealloc(nsets)),
		qc:    make([]ownedQC, 0, br.Prealloc(nqc)),
	}

	for i := range nsets {
		name, err := br.FixedString(ProbeSetNameSize)
		if err != nil {
			return nil, fmt.Errorf("read probe set name %d: %w", i, err)
		}
		recs.names = append(recs.names, name)
	}

	// Records are stored in order, so the offset table is only consumed.
	if _, err := buildIndex(br, hdr.NumQCProbeSets, hdr.NumProbeSets); err != nil {
		return nil, err
	}

	for i := range nqc {
		qc, err := readQCProbeSet(br)
		if err != nil {
			return nil, fmt.Errorf("QC probe set %d: %w", i, err)
		}
		recs.qc = append(recs.qc, qc)
	}
	for i := range nsets {
		s, err := readProbeSet(br)
		if err != nil {
			return nil, fmt.Errorf("probe set %d: %w", i, err)
		}
		recs.sets = append(recs.sets, s)
	}
	return recs, nil
}

func readQCProbeSet(br *binio.Reader) (ownedQC, error) {
	var qc ownedQC
	b, err := br.Record(QCProbeSetSize)
	if err != nil {
		return qc, err
	}
	qc.QCProbeSet = decodeQCProbeSet(b)
	if qc.NumCells < 0 {
		return qc, fmt.Errorf("negative cell count %d: %w", qc.NumCells, format.ErrMalformed)
	}
	if err := br.Need(int64(qc.NumCells)*QCProbeSize, "QC cells"); err != nil {
		return qc, err
	}
	n := int(qc.NumCells)
	qc.cells = make([]QCProbe, 0, br.Prealloc(n))
	for c := range n {
		b, err := br.Record(QCProbeSize)
		if err != nil {
			return qc, fmt.Errorf("cell %d: %w", c, err)
		}
		qc.cells = append(qc.cells, decodeQCProbe(b))
	}
	return qc, nil
}

func readProbeSet(br *binio.Reader) (ownedSet, error) {
	var s ownedSet
	b, err := br.Record(ProbeSetSize)
	if err != nil {
		return s, err
	}
	s.ProbeSet = decodeProbeSet(b)
	if s.NumGroups < 0 {
		return s, fmt.Errorf("negative group count %d: %w", s.NumGroups, format.ErrMalformed)
	}
	if err := br.Need(int64(s.NumGroups)*ProbeGroupSize, "groups"); err != nil {
		return s, err
	}
	n := int(s.NumGroups)
	s.groups = make([]ownedGroup, 0, br.Prealloc(n))
	for g := range n {
		grp, err := readGroup(br)
		if err != nil {
			return s, fmt.Errorf("group %d: %w", g, err)
		}
		s.groups = append(s.groups, grp)
	}
	return s, nil
}

func readGroup(br *binio.Reader) (ownedGroup, error) {
	var grp ownedGroup
	b, err := br.Record(ProbeGroupSize)
	if err != nil {
		return grp, err
	}
	grp.ProbeGroup = decodeProbeGroup(b)
	if grp.NumCells < 0 {
		return grp, fmt.Errorf("negative cell count %d: %w", grp.NumCells, format.ErrMalformed)
	}
	if err := br.Need(int64(grp.NumCells)*ProbeSize, "cells"); err != nil {
		return grp, err
	}
	n := int(grp.NumCells)
	grp.cells = make([]Probe, 0, br.Prealloc(n))
	for k := range n {
		b, err := br.Record(ProbeSize)
		if err != nil {
			return grp, fmt.Errorf("cell %d: %w", k, err)
		}
		p := decodeProbe(b)
		grp.cells = append(grp.cells, p)
		// A single cell group keeps the Stop stored in the file.
		if k == 0 {
			grp.Start = p.ListIndex
		} else if k == n-1 {
			grp.Stop = p.ListIndex
		}
	}
	return grp, nil
}
