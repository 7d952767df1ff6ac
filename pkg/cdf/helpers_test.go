package cdf

import (
	"path/filepath"
	"testing"

	"github.com/eunmann/affxfusion/pkg/fixture"
	"github.com/eunmann/affxfusion/pkg/format"
)

func writeXDA(t *testing.T, c *fixture.CDF, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := fixture.WriteFile(path, c.WriteXDA); err != nil {
		t.Fatalf("write xda fixture: %v", err)
	}
	return path
}

func writeText(t *testing.T, c *fixture.CDF, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := fixture.WriteFile(path, c.WriteText); err != nil {
		t.Fatalf("write text fixture: %v", err)
	}
	return path
}

func openFile(t *testing.T, path string, mode format.Mode) *File {
	t.Helper()
	f := New(Options{Mode: mode})
	f.SetFileName(path)
	if !f.Read() {
		t.Fatalf("Read(%s) failed: %v", path, f.Err())
	}
	t.Cleanup(func() { f.Close() })
	return f
}

// sameRecords walks every record reachable through a and b and fails on
// the first difference.
func sameRecords(t *testing.T, a, b Records) {
	t.Helper()
	if a.NumProbeSets() != b.NumProbeSets() || a.NumQCProbeSets() != b.NumQCProbeSets() {
		t.Fatalf("counts differ: %d/%d vs %d/%d", a.NumProbeSets(), a.NumQCProbeSets(), b.NumProbeSets(), b.NumQCProbeSets())
	}

	for i := 0; i < a.NumQCProbeSets(); i++ {
		qa, err := a.QCProbeSet(i)
		if err != nil {
			t.Fatalf("QCProbeSet(%d): %v", i, err)
		}
		qb, err := b.QCProbeSet(i)
		if err != nil {
			t.Fatalf("QCProbeSet(%d): %v", i, err)
		}
		if qa != qb {
			t.Fatalf("QCProbeSet(%d) = %+v vs %+v", i, qa, qb)
		}
		for c := 0; c < int(qa.NumCells); c++ {
			ca, errA := a.QCProbe(i, c)
			cb, errB := b.QCProbe(i, c)
			if errA != nil || errB != nil {
				t.Fatalf("QCProbe(%d,%d): %v, %v", i, c, errA, errB)
			}
			if ca != cb {
				t.Fatalf("QCProbe(%d,%d) = %+v vs %+v", i, c, ca, cb)
			}
		}
	}

	for i := 0; i < a.NumProbeSets(); i++ {
		na, errA := a.ProbeSetName(i)
		nb, errB := b.ProbeSetName(i)
		if errA != nil || errB != nil || na != nb {
			t.Fatalf("ProbeSetName(%d) = %q, %v vs %q, %v", i, na, errA, nb, errB)
		}
		pa, errA := a.ProbeSet(i)
		pb, errB := b.ProbeSet(i)
		if errA != nil || errB != nil {
			t.Fatalf("ProbeSet(%d): %v, %v", i, errA, errB)
		}
		if pa != pb {
			t.Fatalf("ProbeSet(%d) = %+v vs %+v", i, pa, pb)
		}
		for g := 0; g < int(pa.NumGroups); g++ {
			ga, errA := a.Group(i, g)
			gb, errB := b.Group(i, g)
			if errA != nil || errB != nil {
				t.Fatalf("Group(%d,%d): %v, %v", i, g, errA, errB)
			}
			if ga != gb {
				t.Fatalf("Group(%d,%d) = %+v vs %+v", i, g, ga, gb)
			}
			for c := 0; c < int(ga.NumCells); c++ {
				ca, errA := a.Probe(i, g, c)
				cb, errB := b.Probe(i, g, c)
				if errA != nil || errB != nil {
					t.Fatalf("Probe(%d,%d,%d): %v, %v", i, g, c, errA, errB)
				}
				if ca != cb {
					t.Fatalf("Probe(%d,%d,%d) = %+v vs %+v", i, g, c, ca, cb)
				}
			}
		}
	}
}
