package cel

import (
	"fmt"
	"io"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
)

// ParseXDA decodes a whole XDA file from r.
func ParseXDA(r io.Reader, sparse bool) (Header, *OwnedRecords, error) {
	return parseXDA(binio.NewReader(r), sparse)
}

func parseXDA(br *binio.Reader, sparse bool) (Header, *OwnedRecords, error) {
	hdr, err := readHeader(br)
	if err != nil {
		return hdr, nil, err
	}
	recs, err := parseBody(br, &hdr, sparse)
	if err != nil {
		return hdr, nil, err
	}
	return hdr, recs, nil
}

// ParseBody decodes the entries that follow hdr, then the masked and the
// outlier coordinate lists when sparse is set. Without sparse the lists are
// left unread and the header counts are zeroed.
func ParseBody(r io.Reader, hdr *Header, sparse bool) (*OwnedRecords, error) {
	return parseBody(binio.NewReader(r), hdr, sparse)
}

func parseBody(br *binio.Reader, hdr *Header, sparse bool) (*OwnedRecords, error) {
	need := int64(hdr.NumCells) * EntrySize
	if sparse {
		need += sparseSize(*hdr)
	}
	if err := br.Need(need, "cell entries"); err != nil {
		return nil, err
	}
	n := int(hdr.NumCells)
	recs := newOwnedRecords(br.Prealloc(n))
	for i := range n {
		b, err := br.Record(EntrySize)
		if err != nil {
			return nil, fmt.Errorf("read cell %d: %w", i, err)
		}
		recs.entries = append(recs.entries, decodeEntry(b))
	}

	if !sparse {
		hdr.NumMasked = 0
		hdr.NumOutliers = 0
		return recs, nil
	}
	if err := readCoords(br, hdr.Cols, hdr.NumMasked, recs.masked); err != nil {
		return nil, fmt.Errorf("read masked cells: %w", err)
	}
	if err := readCoords(br, hdr.Cols, hdr.NumOutliers, recs.outliers); err != nil {
		return nil, fmt.Errorf("read outlier cells: %w", err)
	}
	return recs, nil
}

func readCoords(br *binio.Reader, cols int32, n uint32, dst CellSet) error {
	for k := uint32(0); k < n; k++ {
		b, err := br.Record(4)
		if err != nil {
			return fmt.Errorf("coordinate %d: %w", k, err)
		}
		dst.add(coordIndex(b, cols))
	}
	return nil
}

func decodeEntry(b []byte) Entry {
	return Entry{
		Intensity: binio.FromLittleEndianF32(b[0:]),
		Stdv:      binio.FromLittleEndianF32(b[4:]),
		Pixels:    binio.FromLittleEndianI16(b[8:]),
	}
}

// coordIndex decodes an int16 x,y pair into y*cols + x.
func coordIndex(b []byte, cols int32) int32 {
	x := int32(binio.FromLittleEndianI16(b[0:]))
	y := int32(binio.FromLittleEndianI16(b[2:]))
	return y*cols + x
}

// sparseSize is the byte length of the coordinate lists.
func sparseSize(hdr Header) int64 {
	return 4 * (int64(hdr.NumMasked) + int64(hdr.NumOutliers))
}

func checkSize(hdr Header, size int64) error {
	want := hdr.Size() + int64(hdr.NumCells)*EntrySize + sparseSize(hdr)
	if size < want {
		return fmt.Errorf("file is %d bytes, header describes %d: %w", size, want, format.ErrTruncated)
	}
	return nil
}
