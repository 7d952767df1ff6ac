package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
)

// batchRows is how many rows are buffered before each Write call.
const batchRows = 4096

// WriteCELParquet writes every cell of f and returns the row count.
func WriteCELParquet(w io.Writer, f *cel.File) (int64, error) {
	pw := parquet.NewGenericWriter[CELRow](w, parquet.Compression(&parquet.Zstd))
	outliers, err := f.Outliers()
	if err != nil {
		return 0, err
	}
	masked, err := f.Masked()
	if err != nil {
		return 0, err
	}
	isOutlier := toSet(outliers)
	isMasked := toSet(masked)

	var written int64
	batch := make([]CELRow, 0, batchRows)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := pw.Write(batch)
		written += int64(n)
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		return nil
	}

	for i := 0; i < f.NumCells(); i++ {
		e, err := f.Entry(i)
		if err != nil {
			return written, err
		}
		batch = append(batch, CELRow{
			Index:     int32(i),
			X:         int32(f.IndexToX(i)),
			Y:         int32(f.IndexToY(i)),
			Intensity: e.Intensity,
			Stdv:      e.Stdv,
			Pixels:    int32(e.Pixels),
			Outlier:   isOutlier[i],
			Masked:    isMasked[i],
		})
		if len(batch) == batchRows {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	if err := pw.Close(); err != nil {
		return written, fmt.Errorf("close parquet writer: %w", err)
	}
	return written, nil
}

func toSet(idx []int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}

// WriteCDFParquet writes one row per probe of every probe set in f.
func WriteCDFParquet(w io.Writer, f *cdf.File) (int64, error) {
	pw := parquet.NewGenericWriter[CDFRow](w, parquet.Compression(&parquet.Zstd))
	cols := int32(f.Header().Cols)
	logic := f.Options().Logic

	var written int64
	batch := make([]CDFRow, 0, batchRows)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := pw.Write(batch)
		written += int64(n)
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		return nil
	}

	for i := 0; i < f.NumProbeSets(); i++ {
		ps, err := f.ProbeSet(i)
		if err != nil {
			return written, err
		}
		name, err := ps.Name()
		if err != nil {
			return written, err
		}
		for g := 0; g < int(ps.NumGroups); g++ {
			grp, err := ps.Group(g)
			if err != nil {
				return written, err
			}
			cells, err := grp.Cells()
			if err != nil {
				return written, err
			}
			for c, p := range cells {
				batch = append(batch, CDFRow{
					ProbeSet:     int32(i),
					ProbeSetName: name,
					Type:         ps.Type.String(),
					Group:        int32(g),
					GroupName:    grp.Name,
					Direction:    grp.Direction.String(),
					Cell:         int32(c),
					X:            int32(p.X),
					Y:            int32(p.Y),
					CellIndex:    int32(p.Y)*cols + int32(p.X),
					ListIndex:    p.ListIndex,
					Expos:        p.Expos,
					PBase:        string(p.PBase),
					TBase:        string(p.TBase),
					Mismatch:     p.IsMismatch(logic),
				})
				if len(batch) == batchRows {
					if err := flush(); err != nil {
						return written, err
					}
				}
			}
		}
	}
	if err := flush(); err != nil {
		return written, err
	}
	if err := pw.Close(); err != nil {
		return written, fmt.Errorf("close parquet writer: %w", err)
	}
	return written, nil
}
