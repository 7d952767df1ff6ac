package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/fixture"
	"github.com/eunmann/affxfusion/pkg/format"
)

// writeScans writes n 8x6 arrays with distinct seeds, alternating XDA and
// text encodings.
func writeScans(t *testing.T, n int) ([]string, []*fixture.CEL) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, n)
	scans := make([]*fixture.CEL, n)
	for j := range n {
		c := fixture.GenerateCEL(fixture.CELConfig{Cols: 8, Rows: 6, Seed: int64(j + 1), Outliers: []int{1}})
		path := filepath.Join(dir, fmt.Sprintf("scan%02d.CEL", j))
		write := c.WriteXDA
		if j%2 == 1 {
			write = c.WriteTextV3
		}
		require.NoError(t, fixture.WriteFile(path, write))
		paths[j] = path
		scans[j] = c
	}
	return paths, scans
}

func TestReadIntensitiesSubset(t *testing.T) {
	paths, scans := writeScans(t, 6)
	indices := []int{0, 7, 47, 20}

	cfg := DefaultConfig()
	cfg.Concurrency = 3
	m, err := ReadIntensities(context.Background(), paths, indices, cfg)
	require.NoError(t, err)

	require.Equal(t, 8, m.Cols)
	require.Equal(t, 6, m.Rows)
	require.Len(t, m.Values, len(paths))
	for j := range paths {
		require.Len(t, m.Values[j], len(indices))
		for k, idx := range indices {
			require.Equal(t, scans[j].Entries[idx].Intensity, m.Intensity(j, k), "file %d cell %d", j, idx)
		}
	}
}

func TestReadIntensitiesAllCells(t *testing.T) {
	paths, scans := writeScans(t, 2)

	cfg := DefaultConfig()
	cfg.CEL.Mode = format.ModeMapped
	m, err := ReadIntensities(context.Background(), paths, nil, cfg)
	require.NoError(t, err)

	require.Len(t, m.Indices, 48)
	for j := range paths {
		for i, e := range scans[j].Entries {
			require.Equal(t, e.Intensity, m.Values[j][i])
		}
	}
}

func TestReadIntensitiesEmpty(t *testing.T) {
	m, err := ReadIntensities(context.Background(), nil, []int{1}, DefaultConfig())
	require.NoError(t, err)
	require.Empty(t, m.Values)
}

func TestReadIntensitiesDimensionMismatch(t *testing.T) {
	paths, _ := writeScans(t, 2)
	odd := fixture.GenerateCEL(fixture.CELConfig{Cols: 4, Rows: 4})
	oddPath := filepath.Join(t.TempDir(), "odd.CEL")
	require.NoError(t, fixture.WriteFile(oddPath, odd.WriteXDA))

	_, err := ReadIntensities(context.Background(), append(paths, oddPath), []int{0}, DefaultConfig())
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestReadIntensitiesErrors(t *testing.T) {
	paths, _ := writeScans(t, 2)

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "absent.CEL")
		_, err := ReadIntensities(context.Background(), append(paths, missing), []int{0}, DefaultConfig())
		require.ErrorIs(t, err, format.ErrNotFound)
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := ReadIntensities(context.Background(), paths, []int{48}, DefaultConfig())
		require.ErrorIs(t, err, format.ErrOutOfRange)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ReadIntensities(ctx, paths, []int{0}, DefaultConfig())
		require.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("fixed dimensions", func(t *testing.T) {
		cfg := Config{Cols: 10, Rows: 10, CEL: cel.DefaultOptions()}
		_, err := ReadIntensities(context.Background(), paths, []int{0}, cfg)
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})
}
