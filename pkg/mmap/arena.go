// Package mmap maps array files read-only and hands out bounds-checked
// views into the mapping.
package mmap

import (
	"fmt"
	"os"
	"sync"

	"github.com/eunmann/affxfusion/pkg/format"
)

// Arena owns one read-only mapping of a file. Views hold the arena and an
// offset rather than raw pointers, so a closed arena is detected instead of
// dereferenced.
//
// Thread Safety: reads through Bytes and View may run concurrently. Close
// must only be called once the readers are done; later reads fail with
// format.ErrClosed.
type Arena struct {
	path   string
	data   []byte
	size   int64
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	unmap  func([]byte) error
}

// Open maps path into memory. Open failures are reported as
// format.ErrNotFound, mapping failures as format.ErrMapping.
func Open(path string) (*Arena, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, format.ErrNotFound)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	size := info.Size()
	if size == 0 {
		return &Arena{path: path, unmap: func([]byte) error { return nil }}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%s is too large to map (%d bytes): %w", path, size, format.ErrMapping)
	}

	data, err := mapFile(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %v: %w", path, err, format.ErrMapping)
	}

	return &Arena{
		path:  path,
		data:  data,
		size:  size,
		unmap: unmapFile,
	}, nil
}

// FromBytes wraps an in-memory buffer as an arena. Close releases nothing.
func FromBytes(b []byte) *Arena {
	return &Arena{data: b, size: int64(len(b)), unmap: func([]byte) error { return nil }}
}

// Close unmaps the file. It is safe to call more than once; only the first
// call releases the mapping.
func (a *Arena) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.closed = true
		if a.data != nil {
			if uerr := a.unmap(a.data); uerr != nil {
				err = fmt.Errorf("munmap: %w", uerr)
			}
		}
		a.data = nil
	})
	return err
}

// Closed reports whether Close has been called.
func (a *Arena) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Path returns the mapped file path, empty for FromBytes arenas.
func (a *Arena) Path() string {
	return a.path
}

// Size returns the mapped length.
func (a *Arena) Size() int64 {
	return a.size
}

// Bytes returns the whole mapping. The slice must not be retained past Close.
func (a *Arena) Bytes() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, format.ErrClosed
	}
	return a.data, nil
}

// View returns a handle on [off, off+n) after checking the range.
func (a *Arena) View(off, n int64) (View, error) {
	if off < 0 || n < 0 || off > a.size || a.size-off < n {
		return View{}, fmt.Errorf("view [%d,+%d) outside %d byte mapping: %w", off, n, a.size, format.ErrTruncated)
	}
	if a.Closed() {
		return View{}, format.ErrClosed
	}
	return View{arena: a, off: off, n: n}, nil
}

// View is a window on an arena.
type View struct {
	arena *Arena
	off   int64
	n     int64
}

// Offset returns the absolute start of the view.
func (v View) Offset() int64 { return v.off }

// Len returns the view length.
func (v View) Len() int64 { return v.n }

// Bytes returns the bytes under the view, or format.ErrClosed once the
// arena is gone.
func (v View) Bytes() ([]byte, error) {
	if v.arena == nil {
		return nil, format.ErrClosed
	}
	data, err := v.arena.Bytes()
	if err != nil {
		return nil, err
	}
	return data[v.off : v.off+v.n], nil
}
