package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// CELReader streams CELRows back out of a Parquet file, one row group at a
// time. Columns are located by name so files with extra or reordered
// columns still decode.
type CELReader struct {
	file *parquet.File
	cols map[string]int

	rowGroups    []parquet.RowGroup
	currentRGIdx int
	currentRows  parquet.Rows
	rowBuf       []parquet.Row
	bufIdx       int
	bufLen       int
}

var requiredCELColumns = []string{"index", "intensity"}

// OpenCELReader opens a Parquet intensity table.
func OpenCELReader(r io.ReaderAt, size int64) (*CELReader, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	cols := make(map[string]int)
	for i, field := range file.Schema().Fields() {
		cols[field.Name()] = i
	}
	for _, name := range requiredCELColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("parquet schema missing %q column", name)
		}
	}

	return &CELReader{
		file:         file,
		cols:         cols,
		rowGroups:    file.RowGroups(),
		currentRGIdx: -1,
		rowBuf:       make([]parquet.Row, 1024),
	}, nil
}

// NumRows returns the row count recorded in the file footer.
func (r *CELReader) NumRows() int64 { return r.file.NumRows() }

// Next returns the next row, or io.EOF after the last.
func (r *CELReader) Next() (CELRow, error) {
	for {
		if r.bufIdx < r.bufLen {
			row := r.rowBuf[r.bufIdx]
			r.bufIdx++
			return r.decode(row), nil
		}

		if r.currentRows != nil {
			n, err := r.currentRows.ReadRows(r.rowBuf)
			if n > 0 {
				r.bufIdx = 0
				r.bufLen = n
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return CELRow{}, fmt.Errorf("read parquet rows: %w", err)
			}
			r.currentRows.Close()
			r.currentRows = nil
		}

		r.currentRGIdx++
		if r.currentRGIdx >= len(r.rowGroups) {
			return CELRow{}, io.EOF
		}
		r.currentRows = r.rowGroups[r.currentRGIdx].Rows()
	}
}

func (r *CELReader) decode(row parquet.Row) CELRow {
	var out CELRow
	for _, val := range row {
		if val.IsNull() {
			continue
		}
		switch val.Column() {
		case r.col("index"):
			out.Index = val.Int32()
		case r.col("x"):
			out.X = val.Int32()
		case r.col("y"):
			out.Y = val.Int32()
		case r.col("intensity"):
			out.Intensity = val.Float()
		case r.col("stdv"):
			out.Stdv = val.Float()
		case r.col("pixels"):
			out.Pixels = val.Int32()
		case r.col("outlier"):
			out.Outlier = val.Boolean()
		case r.col("masked"):
			out.Masked = val.Boolean()
		}
	}
	return out
}

// col returns the column index of name, or -1 when absent.
func (r *CELReader) col(name string) int {
	if i, ok := r.cols[name]; ok {
		return i
	}
	return -1
}

// Close releases the current row group.
func (r *CELReader) Close() error {
	if r.currentRows != nil {
		r.currentRows.Close()
		r.currentRows = nil
	}
	return nil
}
