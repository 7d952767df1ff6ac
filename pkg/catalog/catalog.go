// Package catalog builds and verifies a JSON manifest of the array files
// found in a directory.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/fileutil"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
)

// Version is the current manifest format version.
const Version = 1

// FileName is the manifest written by Write.
const FileName = "catalog.json"

// Catalog describes the array files under a directory.
type Catalog struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Root      string    `json:"root"`
	Files     []Entry   `json:"files"`
}

// Entry describes one file. Name is relative to the catalog root.
type Entry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Kind     string `json:"kind"`
	Encoding string `json:"encoding"`
	ChipType string `json:"chip_type,omitempty"`
	Cols     int    `json:"cols,omitempty"`
	Rows     int    `json:"rows,omitempty"`

	ProbeSets   int `json:"probe_sets,omitempty"`
	QCProbeSets int `json:"qc_probe_sets,omitempty"`

	Cells     int    `json:"cells,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`

	// Error is set when the header could not be decoded.
	Error string `json:"error,omitempty"`
}

// Lookup returns the entry for name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i := sort.Search(len(c.Files), func(i int) bool { return c.Files[i].Name >= name })
	if i < len(c.Files) && c.Files[i].Name == name {
		return c.Files[i], true
	}
	return Entry{}, false
}

// Build walks dir and describes every CDF and CEL file it finds. Other
// files are skipped. Headers are decoded and checksums computed with up to
// concurrency workers.
func Build(ctx context.Context, dir string, concurrency int) (*Catalog, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	start := time.Now()

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == FileName || !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	entries := make([]*Entry, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			e, err := describe(dir, path)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Catalog{Version: Version, CreatedAt: time.Now().UTC(), Root: dir}
	for _, e := range entries {
		if e != nil {
			c.Files = append(c.Files, *e)
		}
	}

	log := logging.WithPhase("catalog")
	logging.PhaseComplete(log, "catalog", time.Since(start)).
		Int("scanned", len(paths)).
		Int("arrays", len(c.Files)).
		Log("catalog built")
	return c, nil
}

// describe returns nil for files that are neither CDF nor CEL.
func describe(root, path string) (*Entry, error) {
	kind, enc := format.Sniff(path)
	if kind != format.KindCDF && kind != format.KindCEL {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	sum, err := checksumFile(path)
	if err != nil {
		return nil, fmt.Errorf("checksum %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	e := &Entry{
		Name:     filepath.ToSlash(rel),
		Size:     info.Size(),
		Checksum: sum,
		Kind:     kind.String(),
		Encoding: enc.String(),
	}
	if kind == format.KindCDF {
		describeCDF(e, path)
	} else {
		describeCEL(e, path)
	}
	return e, nil
}

func describeCDF(e *Entry, path string) {
	f := cdf.New(cdf.Options{Mode: format.ModeStream})
	f.SetFileName(path)
	if !f.ReadHeader() {
		e.Error = f.Err().Error()
		return
	}
	defer f.Close()

	h := f.Header()
	e.ChipType = f.ChipType()
	e.Cols = int(h.Cols)
	e.Rows = int(h.Rows)
	e.ProbeSets = f.NumProbeSets()
	e.QCProbeSets = f.NumQCProbeSets()
}

func describeCEL(e *Entry, path string) {
	f := cel.New(cel.Options{Mode: format.ModeStream})
	f.SetFileName(path)
	if !f.ReadHeader() {
		e.Error = f.Err().Error()
		return
	}
	defer f.Close()

	e.ChipType = f.ChipType()
	e.Cols = f.Cols()
	e.Rows = f.Rows()
	e.Cells = f.NumCells()
	e.Algorithm = f.Header().Algorithm
}

// Write stores the catalog as FileName inside dir.
func Write(dir string, c *Catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	err = fileutil.WriteTmpThenMove("", filepath.Join(dir, FileName), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// Read loads the catalog stored in dir.
func Read(dir string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return &c, nil
}

// Verify checks that every listed file still has its recorded size and
// checksum. dir replaces the recorded root so catalogs survive a move.
func Verify(dir string, c *Catalog) error {
	for _, e := range c.Files {
		path := filepath.Join(dir, filepath.FromSlash(e.Name))

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("file %s: %w", e.Name, err)
		}
		if stat.Size() != e.Size {
			return fmt.Errorf("file %s: size mismatch (got %d, want %d)", e.Name, stat.Size(), e.Size)
		}

		sum, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("checksum %s: %w", e.Name, err)
		}
		if sum != e.Checksum {
			return fmt.Errorf("file %s: checksum mismatch", e.Name)
		}
	}
	return nil
}

// checksumFile computes the SHA-256 checksum of a file.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
