package mmap

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eunmann/affxfusion/pkg/format"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestOpenAndView(t *testing.T) {
	path := writeTemp(t, []byte("0123456789"))

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer a.Close()

	if a.Size() != 10 {
		t.Errorf("Size() = %d, want 10", a.Size())
	}

	v, err := a.View(2, 3)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	b, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if string(b) != "234" {
		t.Errorf("View bytes = %q, want %q", b, "234")
	}

	if _, err := a.View(8, 3); !errors.Is(err, format.ErrTruncated) {
		t.Errorf("View past end = %v, want ErrTruncated", err)
	}
}

func TestCloseInvalidatesViews(t *testing.T) {
	a, err := Open(writeTemp(t, []byte("abcdef")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	v, err := a.View(0, 6)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if !a.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := v.Bytes(); !errors.Is(err, format.ErrClosed) {
		t.Errorf("Bytes after Close = %v, want ErrClosed", err)
	}
	if _, err := a.View(0, 1); !errors.Is(err, format.ErrClosed) {
		t.Errorf("View after Close = %v, want ErrClosed", err)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.cdf"))
	if !errors.Is(err, format.ErrNotFound) {
		t.Errorf("Open(missing) = %v, want ErrNotFound", err)
	}
}

func TestOpenEmpty(t *testing.T) {
	a, err := Open(writeTemp(t, nil))
	if err != nil {
		t.Fatalf("Open(empty) failed: %v", err)
	}
	if a.Size() != 0 {
		t.Errorf("Size() = %d, want 0", a.Size())
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

func TestFromBytes(t *testing.T) {
	a := FromBytes([]byte{1, 2, 3})
	b, err := a.Bytes()
	if err != nil || len(b) != 3 {
		t.Fatalf("Bytes() = %v, %v", b, err)
	}
	a.Close()
	if _, err := a.Bytes(); !errors.Is(err, format.ErrClosed) {
		t.Errorf("Bytes after Close = %v, want ErrClosed", err)
	}
}
