package cel

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/eunmann/affxfusion/pkg/fixture"
	"github.com/eunmann/affxfusion/pkg/format"
)

// scenario is a 10x10 array with two outliers and one masked cell.
func scenario() *fixture.CEL {
	return fixture.GenerateCEL(fixture.CELConfig{
		Cols:     10,
		Rows:     10,
		Outliers: []int{3, 47},
		Masked:   []int{10},
	})
}

func writeCEL(t *testing.T, name string, write func(io.Writer) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := fixture.WriteFile(path, write); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func openCEL(t *testing.T, path string, mode format.Mode) *File {
	t.Helper()
	f := New(Options{Mode: mode, IncludeMaskAndOutliers: true})
	f.SetFileName(path)
	if !f.Read() {
		t.Fatalf("Read(%s) failed: %v", path, f.Err())
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// encodings writes c in every encoding that carries the sparse lists.
func encodings(t *testing.T, c *fixture.CEL) map[string]*File {
	t.Helper()
	xda := writeCEL(t, "scan.CEL", c.WriteXDA)
	return map[string]*File{
		"xda-stream": openCEL(t, xda, format.ModeStream),
		"xda-mapped": openCEL(t, xda, format.ModeMapped),
		"text-v3":    openCEL(t, writeCEL(t, "scan_v3.CEL", c.WriteTextV3), format.ModeAuto),
	}
}
