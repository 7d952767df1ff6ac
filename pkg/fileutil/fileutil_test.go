package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestIsNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.parquet")
	full := filepath.Join(dir, "full.parquet")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("PAR1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if IsNonEmpty(empty) {
		t.Error("IsNonEmpty(empty) = true")
	}
	if !IsNonEmpty(full) {
		t.Error("IsNonEmpty(full) = false")
	}
	if IsNonEmpty(filepath.Join(dir, "absent")) {
		t.Error("IsNonEmpty(absent) = true")
	}
}

func TestWriteTmpThenMove(t *testing.T) {
	outDir := t.TempDir()
	outPath := filepath.Join(outDir, "nested", "scan.parquet")

	err := WriteTmpThenMove("", outPath, func(w io.Writer) error {
		_, err := w.Write([]byte("cells"))
		return err
	})
	if err != nil {
		t.Fatalf("WriteTmpThenMove: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "cells" {
		t.Errorf("content = %q, want %q", got, "cells")
	}

	entries, err := os.ReadDir(filepath.Dir(outPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir holds %d entries, want only the output", len(entries))
	}
}

func TestWriteTmpThenMoveError(t *testing.T) {
	tmpDir := t.TempDir()
	outPath := filepath.Join(t.TempDir(), "scan.parquet")
	if err := os.WriteFile(outPath, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := WriteTmpThenMove(tmpDir, outPath, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("error = %v, want ErrPermission", err)
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("temp dir holds %d entries after failure", len(entries))
	}
	got, _ := os.ReadFile(outPath)
	if string(got) != "previous" {
		t.Errorf("output replaced after failure: %q", got)
	}
}
