package cdf

import "github.com/eunmann/affxfusion/pkg/binio"

// The decoders below are shared by the streaming and mapped readers, so both
// modes interpret a record's bytes identically.

func decodeQCProbeSet(b []byte) QCProbeSet {
	return QCProbeSet{
		Type:     QCProbeSetType(binio.FromLittleEndianU16(b[0:])),
		NumCells: binio.FromLittleEndianI32(b[2:]),
	}
}

func decodeQCProbe(b []byte) QCProbe {
	return QCProbe{
		X:            binio.FromLittleEndianU16(b[0:]),
		Y:            binio.FromLittleEndianU16(b[2:]),
		ProbeLength:  b[4],
		PerfectMatch: b[5] != 0,
		Background:   b[6] != 0,
	}
}

func decodeProbeSet(b []byte) ProbeSet {
	return ProbeSet{
		Type:            ProbeSetType(binio.FromLittleEndianU16(b[0:])),
		Direction:       Direction(b[2]),
		NumLists:        binio.FromLittleEndianI32(b[3:]),
		NumGroups:       binio.FromLittleEndianI32(b[7:]),
		NumCells:        binio.FromLittleEndianI32(b[11:]),
		ProbeSetNumber:  binio.FromLittleEndianI32(b[15:]),
		NumCellsPerList: b[19],
	}
}

func decodeProbeGroup(b []byte) ProbeGroup {
	return ProbeGroup{
		NumLists:        binio.FromLittleEndianI32(b[0:]),
		NumCells:        binio.FromLittleEndianI32(b[4:]),
		NumCellsPerList: b[8],
		Direction:       Direction(b[9]),
		Start:           binio.FromLittleEndianI32(b[10:]),
		Stop:            binio.FromLittleEndianI32(b[14:]),
		Name:            binio.TrimNUL(b[18 : 18+GroupNameSize]),
	}
}

func decodeProbe(b []byte) Probe {
	return Probe{
		ListIndex: binio.FromLittleEndianI32(b[0:]),
		X:         binio.FromLittleEndianU16(b[4:]),
		Y:         binio.FromLittleEndianU16(b[6:]),
		Expos:     binio.FromLittleEndianI32(b[8:]),
		PBase:     b[12],
		TBase:     b[13],
	}
}

// groupNumCellsOffset is where a group record stores its cell count.
const groupNumCellsOffset = 4
