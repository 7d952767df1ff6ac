package cel

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eunmann/affxfusion/pkg/format"
)

func TestOutliersAndMasks(t *testing.T) {
	c := scenario()
	for name, f := range encodings(t, c) {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, 100, f.NumCells())
			require.Equal(t, 2, f.NumOutliers())
			require.Equal(t, 1, f.NumMasked())

			for _, i := range []int{3, 47} {
				ok, err := f.IsOutlier(i)
				require.NoError(t, err)
				require.True(t, ok, "cell %d", i)
			}
			ok, err := f.IsOutlier(4)
			require.NoError(t, err)
			require.False(t, ok)

			ok, err = f.IsMasked(10)
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = f.IsMasked(3)
			require.NoError(t, err)
			require.False(t, ok)

			outliers, err := f.Outliers()
			require.NoError(t, err)
			require.Equal(t, []int{3, 47}, outliers)
			masked, err := f.Masked()
			require.NoError(t, err)
			require.Equal(t, []int{10}, masked)

			_, err = f.IsOutlier(100)
			require.ErrorIs(t, err, format.ErrOutOfRange)
		})
	}
}

func TestEntriesAgree(t *testing.T) {
	c := scenario()
	for name, f := range encodings(t, c) {
		t.Run(name, func(t *testing.T) {
			for i, want := range c.Entries {
				got, err := f.Entry(i)
				require.NoError(t, err)
				require.Equal(t, Entry(want), got, "cell %d", i)
			}
			e, err := f.EntryXY(7, 4)
			require.NoError(t, err)
			require.Equal(t, Entry(c.Entries[47]), e)

			v, err := f.Intensity(47)
			require.NoError(t, err)
			require.Equal(t, c.Entries[47].Intensity, v)
			s, err := f.Stdv(47)
			require.NoError(t, err)
			require.Equal(t, c.Entries[47].Stdv, s)
			p, err := f.Pixels(47)
			require.NoError(t, err)
			require.Equal(t, c.Entries[47].Pixels, p)
		})
	}
}

func TestHeaderFields(t *testing.T) {
	c := scenario()
	for name, f := range encodings(t, c) {
		t.Run(name, func(t *testing.T) {
			h := f.Header()
			require.Equal(t, int32(10), h.Cols)
			require.Equal(t, int32(10), h.Rows)
			require.Equal(t, "Synth-1", f.ChipType())
			require.Equal(t, c.DatHeader(), h.DatHeader)
			require.Equal(t, "Percentile", h.Algorithm)
			require.Equal(t, int32(2), h.Margin)
			require.Equal(t, c.HeaderText(), h.Text)
			require.Equal(t, GridCorners{
				UpperLeft:  Point{10, 12},
				UpperRight: Point{70, 11},
				LowerRight: Point{71, 68},
				LowerLeft:  Point{9, 69},
			}, h.Grid)

			v, ok := h.AlgorithmParameter("OutlierHigh")
			require.True(t, ok)
			require.Equal(t, "1.500", v)
			require.Len(t, h.AlgorithmParameters, 4)
		})
	}
}

func TestTextVersionTwo(t *testing.T) {
	c := scenario()
	f := openCEL(t, writeCEL(t, "old.CEL", c.WriteTextV2), format.ModeAuto)

	require.Equal(t, int32(2), f.Header().Version)
	require.Equal(t, format.EncodingText, f.Encoding())
	require.Equal(t, "Synth-1", f.ChipType())
	require.Zero(t, f.NumOutliers())
	require.Zero(t, f.NumMasked())

	got, err := f.Intensities(nil)
	require.NoError(t, err)
	require.Len(t, got, len(c.Entries))
	for i, e := range c.Entries {
		require.Equal(t, e.Intensity, got[i], "cell %d", i)
	}
}

func TestSkipMaskAndOutliers(t *testing.T) {
	c := scenario()
	paths := map[string]string{
		"xda":  writeCEL(t, "scan.CEL", c.WriteXDA),
		"text": writeCEL(t, "scan_v3.CEL", c.WriteTextV3),
	}
	for name, path := range paths {
		for _, mode := range []format.Mode{format.ModeStream, format.ModeMapped} {
			t.Run(name+"-"+mode.String(), func(t *testing.T) {
				f := New(Options{Mode: mode})
				f.SetFileName(path)
				require.True(t, f.Read(), "%v", f.Err())
				defer f.Close()

				require.Zero(t, f.NumOutliers())
				require.Zero(t, f.NumMasked())
				require.Zero(t, f.Header().NumOutliers)
				ok, err := f.IsOutlier(3)
				require.NoError(t, err)
				require.False(t, ok)

				e, err := f.Entry(99)
				require.NoError(t, err)
				require.Equal(t, Entry(c.Entries[99]), e)
			})
		}
	}
}

func TestIntensitiesSubset(t *testing.T) {
	c := scenario()
	f := openCEL(t, writeCEL(t, "scan.CEL", c.WriteXDA), format.ModeMapped)
	require.True(t, f.IsMapped())

	got, err := f.Intensities([]int{0, 99, 47})
	require.NoError(t, err)
	require.Equal(t, []float32{c.Entries[0].Intensity, c.Entries[99].Intensity, c.Entries[47].Intensity}, got)

	_, err = f.Intensities([]int{0, 100})
	require.ErrorIs(t, err, format.ErrOutOfRange)
}

func TestIndexConversion(t *testing.T) {
	c := scenario()
	f := openCEL(t, writeCEL(t, "scan.CEL", c.WriteXDA), format.ModeStream)
	require.Equal(t, 47, f.XYToIndex(7, 4))
	require.Equal(t, 7, f.IndexToX(47))
	require.Equal(t, 4, f.IndexToY(47))

	_, err := f.EntryXY(10, 0)
	require.ErrorIs(t, err, format.ErrOutOfRange)
	_, err = f.Entry(-1)
	require.ErrorIs(t, err, format.ErrOutOfRange)
}

func TestReadHeaderOnly(t *testing.T) {
	c := scenario()
	for name, path := range map[string]string{
		"xda":  writeCEL(t, "scan.CEL", c.WriteXDA),
		"text": writeCEL(t, "scan_v3.CEL", c.WriteTextV3),
	} {
		t.Run(name, func(t *testing.T) {
			f := New(DefaultOptions())
			f.SetFileName(path)
			require.True(t, f.ReadHeader(), "%v", f.Err())
			defer f.Close()
			require.Equal(t, 100, f.NumCells())
			require.Equal(t, "Synth-1", f.ChipType())
			_, err := f.Entry(0)
			require.ErrorIs(t, err, format.ErrClosed)
		})
	}
}

func TestTruncatedXDA(t *testing.T) {
	c := scenario()
	path := writeCEL(t, "cut.CEL", c.WriteXDA)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-2], 0o644))

	for _, mode := range []format.Mode{format.ModeStream, format.ModeMapped} {
		t.Run(mode.String(), func(t *testing.T) {
			f := New(Options{Mode: mode, IncludeMaskAndOutliers: true})
			f.SetFileName(path)
			require.False(t, f.Read())
			require.ErrorIs(t, f.Err(), format.ErrTruncated)
		})
	}
}

func TestCorruptedMagic(t *testing.T) {
	c := scenario()
	path := writeCEL(t, "bad.CEL", c.WriteXDA)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] = 63
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f := New(DefaultOptions())
	f.SetFileName(path)
	require.False(t, f.IsXDA())
	require.False(t, f.Read())
	require.True(t, errors.Is(f.Err(), format.ErrFormatMismatch), "%v", f.Err())
}

func TestCloseReleases(t *testing.T) {
	c := scenario()
	path := writeCEL(t, "scan.CEL", c.WriteXDA)
	for _, mode := range []format.Mode{format.ModeStream, format.ModeMapped} {
		t.Run(mode.String(), func(t *testing.T) {
			f := New(Options{Mode: mode})
			f.SetFileName(path)
			require.True(t, f.Read())
			require.NoError(t, f.Close())
			require.NoError(t, f.Close())
			_, err := f.Entry(0)
			require.ErrorIs(t, err, format.ErrClosed)
		})
	}
}
