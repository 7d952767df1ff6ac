// Package batch reads intensities from many CEL files concurrently.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/logging"
)

// Config configures ReadIntensities.
type Config struct {
	// Concurrency bounds the number of files open at once. Default: 4.
	Concurrency int
	// CEL holds the reader options applied to every file.
	CEL cel.Options
	// Cols and Rows, when non-zero, require every file to have these
	// dimensions. Otherwise the first file sets them.
	Cols, Rows int
}

// DefaultConfig returns a config with four workers and default reader
// options.
func DefaultConfig() Config {
	return Config{Concurrency: 4, CEL: cel.DefaultOptions()}
}

// Matrix holds one intensity column per file. Values[j][k] is the
// intensity of cell Indices[k] in file Paths[j].
type Matrix struct {
	Paths   []string
	Indices []int
	Values  [][]float32
	Cols    int
	Rows    int
}

// Intensity returns the value of cell k in file j.
func (m *Matrix) Intensity(j, k int) float32 { return m.Values[j][k] }

// ReadIntensities opens every path and reads the requested cells. A nil
// indices slice reads every cell. All files must share the same array
// dimensions.
func ReadIntensities(ctx context.Context, paths []string, indices []int, cfg Config) (*Matrix, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if len(paths) == 0 {
		return &Matrix{Indices: indices}, nil
	}

	if cfg.Cols == 0 || cfg.Rows == 0 {
		cols, rows, err := dimensions(paths[0], cfg.CEL)
		if err != nil {
			return nil, err
		}
		cfg.Cols, cfg.Rows = cols, rows
	}
	if indices == nil {
		indices = make([]int, cfg.Cols*cfg.Rows)
		for i := range indices {
			indices[i] = i
		}
	}

	log := logging.WithPhase("batch_read")
	tracker := logging.NewProgressTracker("batch_read", int64(len(paths)), log)
	start := time.Now()

	m := &Matrix{
		Paths:   paths,
		Indices: indices,
		Values:  make([][]float32, len(paths)),
		Cols:    cfg.Cols,
		Rows:    cfg.Rows,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for j, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fileStart := time.Now()
			vals, err := readOne(path, indices, cfg)
			if err != nil {
				return err
			}
			m.Values[j] = vals
			tracker.RecordCompletion(time.Since(fileStart))

			logging.FileRead(log, "batch_read", time.Since(fileStart)).
				Str("path", path).
				Count("cells", int64(len(vals))).
				ProgressFromTracker(tracker).
				LogDebug("file read")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read intensities: %w", err)
	}

	logging.PhaseComplete(log, "batch_read", time.Since(start)).
		Int("files", len(paths)).
		Count("cells_per_file", int64(len(indices))).
		Log("batch read complete")
	return m, nil
}

func dimensions(path string, opts cel.Options) (int, int, error) {
	f := cel.New(opts)
	f.SetFileName(path)
	if !f.ReadHeader() {
		return 0, 0, fmt.Errorf("read header %s: %w", path, f.Err())
	}
	defer f.Close()
	return f.Cols(), f.Rows(), nil
}

func readOne(path string, indices []int, cfg Config) ([]float32, error) {
	opts := cfg.CEL
	// Only intensities are needed.
	opts.IncludeMaskAndOutliers = false

	f := cel.New(opts)
	f.SetFileName(path)
	if !f.Read() {
		return nil, fmt.Errorf("read %s: %w", path, f.Err())
	}
	defer f.Close()

	if f.Cols() != cfg.Cols || f.Rows() != cfg.Rows {
		return nil, fmt.Errorf("%s: array is %dx%d, want %dx%d: %w",
			path, f.Cols(), f.Rows(), cfg.Cols, cfg.Rows, ErrDimensionMismatch)
	}
	vals, err := f.Intensities(indices)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vals, nil
}
