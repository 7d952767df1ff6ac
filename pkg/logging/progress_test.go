package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestProgressTracker(t *testing.T) {
	pt := NewProgressTracker("batch_read", 10, zerolog.Nop())

	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordSkip()

	completed, skipped, total := pt.Progress()
	if completed != 2 || skipped != 1 || total != 10 {
		t.Errorf("Progress = (%d, %d, %d), want (2, 1, 10)", completed, skipped, total)
	}
	if pct := pt.ProgressPct(); pct != 30.0 {
		t.Errorf("ProgressPct = %.1f, want 30", pct)
	}

	// Seven files left at 100ms each.
	if eta := pt.ETA(); eta != 700*time.Millisecond {
		t.Errorf("ETA = %v, want 700ms", eta)
	}
}

func TestProgressTrackerZeroTotal(t *testing.T) {
	pt := NewProgressTracker("batch_read", 0, zerolog.Nop())
	if pct := pt.ProgressPct(); pct != 100.0 {
		t.Errorf("ProgressPct = %.1f, want 100", pct)
	}
	if eta := pt.ETA(); eta != 0 {
		t.Errorf("ETA = %v, want 0", eta)
	}
}

func TestProgressTrackerConcurrent(t *testing.T) {
	pt := NewProgressTracker("batch_read", 64, zerolog.Nop())

	var wg sync.WaitGroup
	for range 64 {
		wg.Go(func() { pt.RecordCompletion(time.Millisecond) })
	}
	wg.Wait()

	if pt.Completed() != 64 {
		t.Errorf("Completed = %d, want 64", pt.Completed())
	}
	if pt.ETA() != 0 {
		t.Errorf("ETA = %v after all files, want 0", pt.ETA())
	}
}

func TestCompletionEventFields(t *testing.T) {
	var buf bytes.Buffer
	SetPrettyMode(false)

	FileRead(zerolog.New(&buf), "batch_read", 250*time.Millisecond).
		Str("path", "a.CEL").
		Int("cols", 10).
		Count("cells", 100).
		Log("file read")

	out := buf.String()
	for _, want := range []string{
		`"event":"file_read"`,
		`"phase":"batch_read"`,
		`"duration_ms":250`,
		`"path":"a.CEL"`,
		`"cells":100`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
	if strings.Contains(out, "cells_h") {
		t.Errorf("readable companion written outside pretty mode: %s", out)
	}
}

func TestCompletionEventPretty(t *testing.T) {
	var buf bytes.Buffer
	SetPrettyMode(true)
	defer SetPrettyMode(false)

	FileWritten(zerolog.New(&buf), "export", time.Second).
		Bytes("size", 4096).
		Throughput(4096).
		Log("parquet written")

	out := buf.String()
	for _, want := range []string{`"size":4096`, `"size_h":`, `"throughput_h":`, `"duration_h":`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}

func TestCompletionEventProgress(t *testing.T) {
	var buf bytes.Buffer
	pt := NewProgressTracker("batch_read", 4, zerolog.Nop())
	pt.RecordCompletion(10 * time.Millisecond)

	PhaseComplete(zerolog.New(&buf), "batch_read", time.Second).
		ProgressFromTracker(pt).
		Log("progress")

	out := buf.String()
	for _, want := range []string{`"completed":1`, `"total":4`, `"progress_pct":25`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}
}
