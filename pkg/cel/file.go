package cel

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
	"github.com/eunmann/affxfusion/pkg/sysmem"
)

// Options configures a File.
type Options struct {
	// Mode picks streaming or mapped access for XDA files.
	Mode format.Mode
	// IncludeMaskAndOutliers reads the masked and outlier lists. When false
	// both sets are empty and their counts read as zero.
	IncludeMaskAndOutliers bool
}

// DefaultOptions reads everything and lets the file size pick the mode.
func DefaultOptions() Options {
	return Options{Mode: format.ModeAuto, IncludeMaskAndOutliers: true}
}

// File is a CEL on disk plus whatever has been decoded from it. Read and
// ReadHeader report success as a bool and keep the failure for Err.
//
// A File is not safe for concurrent use.
type File struct {
	opts   Options
	loc    format.Location
	hdr    Header
	recs   Records
	enc    format.Encoding
	err    error
	loaded bool
}

// New returns an empty File.
func New(opts Options) *File {
	return &File{opts: opts}
}

// SetLibPath sets the directory the file name is resolved against.
func (f *File) SetLibPath(dir string) { f.loc.SetLibPath(dir) }

// SetFileName sets the file name; a directory prefix becomes the lib path.
func (f *File) SetFileName(name string) { f.loc.SetFileName(name) }

// LibPath returns the library directory.
func (f *File) LibPath() string { return f.loc.LibPath }

// FileName returns the file name without directory.
func (f *File) FileName() string { return f.loc.FileName }

// FullPath returns the resolved path.
func (f *File) FullPath() string { return f.loc.FullPath() }

// Exists reports whether the resolved path exists.
func (f *File) Exists() bool { return f.loc.Exists() }

// IsXDA reports whether the file starts with the XDA magic number.
func (f *File) IsXDA() bool { return format.IsBinaryFormat(f.FullPath(), format.MagicCEL) }

// Err returns the error from the last failed Read or ReadHeader.
func (f *File) Err() error { return f.err }

// Options returns the configuration the file was created with.
func (f *File) Options() Options { return f.opts }

// Encoding returns the encoding of the loaded file.
func (f *File) Encoding() format.Encoding { return f.enc }

// IsMapped reports whether entries are served from a memory mapping.
func (f *File) IsMapped() bool {
	_, ok := f.recs.(*MappedRecords)
	return ok
}

// Header returns the loaded header.
func (f *File) Header() Header { return f.hdr }

// ChipType returns the chip type named in the scanner header.
func (f *File) ChipType() string { return f.hdr.ChipType }

// Cols returns the number of columns.
func (f *File) Cols() int { return int(f.hdr.Cols) }

// Rows returns the number of rows.
func (f *File) Rows() int { return int(f.hdr.Rows) }

// NumCells returns the number of cells.
func (f *File) NumCells() int { return int(f.hdr.NumCells) }

// Read decodes the whole file.
func (f *File) Read() bool { return f.open(false) }

// ReadHeader decodes only the header.
func (f *File) ReadHeader() bool { return f.open(true) }

func (f *File) open(headerOnly bool) bool {
	f.Close()
	f.err = nil
	start := time.Now()

	size, err := f.loc.Stat()
	if err != nil {
		return f.fail(err)
	}
	path := f.FullPath()

	if format.IsBinaryFormat(path, format.MagicCEL) {
		f.enc = format.EncodingXDA
		err = f.openXDA(path, size, headerOnly)
	} else {
		f.enc = format.EncodingText
		err = f.openText(path, headerOnly)
	}
	if err != nil {
		return f.fail(err)
	}

	f.loaded = true
	log := logging.WithPhase("cel_read")
	log.Debug().
		Str("path", path).
		Str("encoding", f.enc.String()).
		Bool("mapped", f.IsMapped()).
		Bool("header_only", headerOnly).
		Int32("cells", f.hdr.NumCells).
		Uint32("outliers", f.hdr.NumOutliers).
		Uint32("masked", f.hdr.NumMasked).
		Dur("elapsed", time.Since(start)).
		Msg("cel loaded")
	return true
}

func (f *File) openXDA(path string, size int64, headerOnly bool) error {
	useMap := f.opts.Mode == format.ModeMapped ||
		(f.opts.Mode == format.ModeAuto && sysmem.PreferMapping(size))

	if useMap && !headerOnly {
		m, err := OpenMapped(path, f.opts.IncludeMaskAndOutliers)
		if err != nil {
			return err
		}
		f.hdr = m.Header()
		f.recs = m
		return nil
	}

	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	in := binio.NewSizedReader(bufio.NewReaderSize(fh, 256*1024), size)

	if headerOnly {
		hdr, err := readHeader(in)
		if err != nil {
			return err
		}
		f.hdr = hdr
		return nil
	}

	hdr, recs, err := parseXDA(in, f.opts.IncludeMaskAndOutliers)
	if err != nil {
		return err
	}
	f.hdr = hdr
	f.recs = recs
	return nil
}

func (f *File) openText(path string, headerOnly bool) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()

	hdr, recs, err := ParseText(fh, headerOnly, f.opts.IncludeMaskAndOutliers)
	if err != nil {
		return err
	}
	f.hdr = hdr
	if recs != nil {
		f.recs = recs
	}
	return nil
}

func (f *File) fail(err error) bool {
	f.Close()
	f.err = err
	return false
}

// Close releases decoded entries or the mapping.
func (f *File) Close() error {
	var err error
	if f.recs != nil {
		err = f.recs.Close()
	}
	f.recs = nil
	f.hdr = Header{}
	f.enc = format.EncodingUnknown
	f.loaded = false
	return err
}

func (f *File) records() (Records, error) {
	if f.recs == nil {
		if f.loaded {
			return nil, fmt.Errorf("only the header was read: %w", format.ErrClosed)
		}
		return nil, format.ErrClosed
	}
	return f.recs, nil
}

func (f *File) checkIndex(i int) error {
	if i < 0 || i >= int(f.hdr.NumCells) {
		return fmt.Errorf("cell %d of %d: %w", i, f.hdr.NumCells, format.ErrOutOfRange)
	}
	return nil
}

// XYToIndex converts a coordinate to a cell index.
func (f *File) XYToIndex(x, y int) int { return y*int(f.hdr.Cols) + x }

// IndexToX returns the column of cell i.
func (f *File) IndexToX(i int) int {
	if f.hdr.Cols == 0 {
		return 0
	}
	return i % int(f.hdr.Cols)
}

// IndexToY returns the row of cell i.
func (f *File) IndexToY(i int) int {
	if f.hdr.Cols == 0 {
		return 0
	}
	return i / int(f.hdr.Cols)
}

// Entry returns the measurement of cell i.
func (f *File) Entry(i int) (Entry, error) {
	recs, err := f.records()
	if err != nil {
		return Entry{}, err
	}
	if err := f.checkIndex(i); err != nil {
		return Entry{}, err
	}
	return recs.Entry(i)
}

// EntryXY returns the measurement of the cell at x,y.
func (f *File) EntryXY(x, y int) (Entry, error) {
	if x < 0 || y < 0 || x >= int(f.hdr.Cols) || y >= int(f.hdr.Rows) {
		return Entry{}, fmt.Errorf("cell (%d,%d) outside %dx%d: %w", x, y, f.hdr.Cols, f.hdr.Rows, format.ErrOutOfRange)
	}
	return f.Entry(f.XYToIndex(x, y))
}

// Intensity returns the mean intensity of cell i.
func (f *File) Intensity(i int) (float32, error) {
	e, err := f.Entry(i)
	return e.Intensity, err
}

// Stdv returns the standard deviation of cell i.
func (f *File) Stdv(i int) (float32, error) {
	e, err := f.Entry(i)
	return e.Stdv, err
}

// Pixels returns the pixel count of cell i.
func (f *File) Pixels(i int) (int16, error) {
	e, err := f.Entry(i)
	return e.Pixels, err
}

// IsOutlier reports whether cell i was flagged as an outlier.
func (f *File) IsOutlier(i int) (bool, error) {
	recs, err := f.records()
	if err != nil {
		return false, err
	}
	if err := f.checkIndex(i); err != nil {
		return false, err
	}
	return recs.Outliers().Has(i), nil
}

// IsMasked reports whether cell i was masked.
func (f *File) IsMasked(i int) (bool, error) {
	recs, err := f.records()
	if err != nil {
		return false, err
	}
	if err := f.checkIndex(i); err != nil {
		return false, err
	}
	return recs.Masked().Has(i), nil
}

// NumOutliers returns the number of outlier cells. After ReadHeader it is
// the count stored in the header.
func (f *File) NumOutliers() int {
	if f.recs != nil {
		return f.recs.Outliers().Len()
	}
	return int(f.hdr.NumOutliers)
}

// NumMasked returns the number of masked cells.
func (f *File) NumMasked() int {
	if f.recs != nil {
		return f.recs.Masked().Len()
	}
	return int(f.hdr.NumMasked)
}

// Outliers returns the outlier cell indices in ascending order.
func (f *File) Outliers() ([]int, error) {
	recs, err := f.records()
	if err != nil {
		return nil, err
	}
	return recs.Outliers().Sorted(), nil
}

// Masked returns the masked cell indices in ascending order.
func (f *File) Masked() ([]int, error) {
	recs, err := f.records()
	if err != nil {
		return nil, err
	}
	return recs.Masked().Sorted(), nil
}

// Intensities returns the intensity of every listed cell, or of all cells
// when indices is nil.
func (f *File) Intensities(indices []int) ([]float32, error) {
	recs, err := f.records()
	if err != nil {
		return nil, err
	}
	if indices == nil {
		out := make([]float32, f.hdr.NumCells)
		for i := range out {
			e, err := recs.Entry(i)
			if err != nil {
				return nil, err
			}
			out[i] = e.Intensity
		}
		return out, nil
	}
	out := make([]float32, len(indices))
	for k, i := range indices {
		if err := f.checkIndex(i); err != nil {
			return nil, err
		}
		e, err := recs.Entry(i)
		if err != nil {
			return nil, err
		}
		out[k] = e.Intensity
	}
	return out, nil
}
