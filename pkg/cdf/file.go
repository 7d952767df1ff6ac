package cdf

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eunmann/affxfusion/pkg/binio"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
	"github.com/eunmann/affxfusion/pkg/sysmem"
)

// Options configures a File.
type Options struct {
	// Logic decides which probes of an expression unit are mismatches.
	Logic Logic
	// Mode picks streaming or mapped access for XDA files. Text files are
	// always decoded into memory.
	Mode format.Mode
}

// File is a CDF on disk plus whatever has been decoded from it. It follows
// the set-path, Read, query, Close lifecycle; Read and ReadHeader report
// success as a bool and keep the failure for Err.
//
// A File is not safe for concurrent use.
type File struct {
	opts   Options
	loc    format.Location
	hdr    Header
	recs   Records
	enc    format.Encoding
	err    error
	gen    uint64
	loaded bool

	namesOnce sync.Once
	names     *NameIndex
	namesErr  error
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
func (f *File) IsXDA() bool { return format.IsBinaryFormat(f.FullPath(), format.MagicCDF) }

// ChipType is the file name minus its extension.
func (f *File) ChipType() string { return f.loc.ChipType() }

// Options returns the configuration the file was created with.
func (f *File) Options() Options { return f.opts }

// Err returns the error from the last failed Read or ReadHeader.
func (f *File) Err() error { return f.err }

// Encoding returns the encoding of the loaded file.
func (f *File) Encoding() format.Encoding { return f.enc }

// IsMapped reports whether records are served from a memory mapping.
func (f *File) IsMapped() bool {
	_, ok := f.recs.(*MappedRecords)
	return ok
}

// Header returns the loaded header.
func (f *File) Header() Header { return f.hdr }

// NumProbeSets returns the header's probe set count.
func (f *File) NumProbeSets() int { return int(f.hdr.NumProbeSets) }

// NumQCProbeSets returns the header's QC probe set count.
func (f *File) NumQCProbeSets() int { return int(f.hdr.NumQCProbeSets) }

// Records exposes the record backend, nil when only a header is loaded.
func (f *File) Records() Records { return f.recs }

// Read decodes the whole file. On failure the file is left closed and Err
// describes what went wrong.
func (f *File) Read() bool {
	return f.open(false)
}

// ReadHeader decodes only the header.
func (f *File) ReadHeader() bool {
	return f.open(true)
}

func (f *File) open(headerOnly bool) bool {
	f.Close()
	f.err = nil
	start := time.Now()

	size, err := f.loc.Stat()
	if err != nil {
		return f.fail(err)
	}
	path := f.FullPath()

	if format.IsBinaryFormat(path, format.MagicCDF) {
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
	log := logging.WithPhase("cdf_read")
	log.Debug().
		Str("path", path).
		Str("encoding", f.enc.String()).
		Bool("mapped", f.IsMapped()).
		Bool("header_only", headerOnly).
		Int32("probe_sets", f.hdr.NumProbeSets).
		Int32("qc_probe_sets", f.hdr.NumQCProbeSets).
		Dur("elapsed", time.Since(start)).
		Msg("cdf loaded")
	return true
}

func (f *File) openXDA(path string, size int64, headerOnly bool) error {
	useMap := f.opts.Mode == format.ModeMapped ||
		(f.opts.Mode == format.ModeAuto && sysmem.PreferMapping(size))

	if useMap && !headerOnly {
		m, err := OpenMapped(path)
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

	hdr, recs, err := parseXDA(in)
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

	hdr, recs, err := ParseText(fh, f.opts.Logic, headerOnly)
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

// Close releases decoded records or the mapping. Views obtained earlier
// fail with format.ErrClosed afterwards.
func (f *File) Close() error {
	var err error
	if f.recs != nil {
		err = f.recs.Close()
	}
	f.recs = nil
	f.hdr = Header{}
	f.enc = format.EncodingUnknown
	f.loaded = false
	f.gen++
	f.namesOnce = sync.Once{}
	f.names = nil
	f.namesErr = nil
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

func (f *File) checkProbeSet(i int) error {
	if i < 0 || i >= int(f.hdr.NumProbeSets) {
		return fmt.Errorf("probe set %d of %d: %w", i, f.hdr.NumProbeSets, format.ErrOutOfRange)
	}
	return nil
}

// ProbeSetName returns the name of probe set i.
func (f *File) ProbeSetName(i int) (string, error) {
	recs, err := f.records()
	if err != nil {
		return "", err
	}
	if err := f.checkProbeSet(i); err != nil {
		return "", err
	}
	return recs.ProbeSetName(i)
}

// ProbeSetType returns the type of probe set i.
func (f *File) ProbeSetType(i int) (ProbeSetType, error) {
	recs, err := f.records()
	if err != nil {
		return UnknownProbeSet, err
	}
	if err := f.checkProbeSet(i); err != nil {
		return UnknownProbeSet, err
	}
	ps, err := recs.ProbeSet(i)
	if err != nil {
		return UnknownProbeSet, err
	}
	return ps.Type, nil
}

// ProbeSet returns a read-only view of probe set i.
func (f *File) ProbeSet(i int) (ProbeSetView, error) {
	recs, err := f.records()
	if err != nil {
		return ProbeSetView{}, err
	}
	if err := f.checkProbeSet(i); err != nil {
		return ProbeSetView{}, err
	}
	ps, err := recs.ProbeSet(i)
	if err != nil {
		return ProbeSetView{}, err
	}
	return ProbeSetView{ProbeSet: ps, f: f, gen: f.gen, index: i}, nil
}

// QCProbeSet returns a read-only view of QC probe set i.
func (f *File) QCProbeSet(i int) (QCProbeSetView, error) {
	recs, err := f.records()
	if err != nil {
		return QCProbeSetView{}, err
	}
	if i < 0 || i >= int(f.hdr.NumQCProbeSets) {
		return QCProbeSetView{}, fmt.Errorf("QC probe set %d of %d: %w", i, f.hdr.NumQCProbeSets, format.ErrOutOfRange)
	}
	qc, err := recs.QCProbeSet(i)
	if err != nil {
		return QCProbeSetView{}, err
	}
	return QCProbeSetView{QCProbeSet: qc, f: f, gen: f.gen, index: i}, nil
}

// QCProbeSetByType returns the first QC probe set of type t. When none
// exists the view has Type t, zero cells and index -1.
func (f *File) QCProbeSetByType(t QCProbeSetType) (QCProbeSetView, error) {
	recs, err := f.records()
	if err != nil {
		return QCProbeSetView{}, err
	}
	for i := 0; i < int(f.hdr.NumQCProbeSets); i++ {
		qc, err := recs.QCProbeSet(i)
		if err != nil {
			return QCProbeSetView{}, err
		}
		if qc.Type == t {
			return QCProbeSetView{QCProbeSet: qc, f: f, gen: f.gen, index: i}, nil
		}
	}
	return QCProbeSetView{QCProbeSet: QCProbeSet{Type: t}, f: f, gen: f.gen, index: -1}, nil
}

// LookupProbeSet resolves a probe set name to its index. The name index is
// built on first use.
func (f *File) LookupProbeSet(name string) (int, bool, error) {
	recs, err := f.records()
	if err != nil {
		return 0, false, err
	}
	f.namesOnce.Do(func() {
		// Unlisted text units have no name, so only the decoded ones count.
		if o, ok := recs.(*OwnedRecords); ok {
			f.names, f.namesErr = BuildNameIndex(o.Names())
			return
		}
		names := make([]string, f.NumProbeSets())
		for i := range names {
			n, err := recs.ProbeSetName(i)
			if err != nil {
				f.namesErr = err
				return
			}
			names[i] = n
		}
		f.names, f.namesErr = BuildNameIndex(names)
	})
	if f.namesErr != nil {
		return 0, false, f.namesErr
	}
	idx, ok := f.names.Lookup(name)
	if !ok {
		return 0, false, nil
	}
	// guard against hash collisions with names absent from the file
	actual, err := recs.ProbeSetName(idx)
	if err != nil {
		return 0, false, err
	}
	return idx, actual == name, nil
}

// CellIndices returns, per group of probe set i, the array index y*cols+x
// of every cell.
func (f *File) CellIndices(i int) ([][]int, error) {
	ps, err := f.ProbeSet(i)
	if err != nil {
		return nil, err
	}
	cols := int(f.hdr.Cols)
	out := make([][]int, ps.NumGroups)
	for g := range out {
		grp, err := ps.Group(g)
		if err != nil {
			return nil, err
		}
		cells, err := grp.Cells()
		if err != nil {
			return nil, err
		}
		idx := make([]int, len(cells))
		for c, p := range cells {
			idx[c] = int(p.Y)*cols + int(p.X)
		}
		out[g] = idx
	}
	return out, nil
}

// PMMM is a perfect match / mismatch pair of array indices.
type PMMM struct {
	PM int
	MM int
}

// PMMMPairs returns, per group of probe set i, the perfect match and
// mismatch cells of each list, classified with the file's logic. Lists that
// lack either member are skipped.
func (f *File) PMMMPairs(i int) ([][]PMMM, error) {
	ps, err := f.ProbeSet(i)
	if err != nil {
		return nil, err
	}
	cols := int(f.hdr.Cols)
	out := make([][]PMMM, ps.NumGroups)
	for g := range out {
		grp, err := ps.Group(g)
		if err != nil {
			return nil, err
		}
		cells, err := grp.Cells()
		if err != nil {
			return nil, err
		}
		cpl := int(grp.NumCellsPerList)
		if cpl <= 0 {
			cpl = int(defaultCellsPerList(ps.Type))
		}
		var pairs []PMMM
		for lo := 0; lo < len(cells); lo += cpl {
			hi := min(lo+cpl, len(cells))
			pm, mm := -1, -1
			for _, p := range cells[lo:hi] {
				idx := int(p.Y)*cols + int(p.X)
				if p.IsMismatch(f.opts.Logic) {
					if mm < 0 {
						mm = idx
					}
				} else if pm < 0 {
					pm = idx
				}
			}
			if pm >= 0 && mm >= 0 {
				pairs = append(pairs, PMMM{PM: pm, MM: mm})
			}
		}
		out[g] = pairs
	}
	return out, nil
}
