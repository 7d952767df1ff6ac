//go:build windows

package mmap

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	handlesMu sync.Mutex
	handles   = map[uintptr]windows.Handle{}
)

func mapFile(f *os.File, size int) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateFileMapping: %w", err)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}

	handlesMu.Lock()
	handles[addr] = h
	handlesMu.Unlock()

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func unmapFile(b []byte) error {
	addr := uintptr(unsafe.Pointer(&b[0]))
	err := windows.UnmapViewOfFile(addr)

	handlesMu.Lock()
	h, ok := handles[addr]
	delete(handles, addr)
	handlesMu.Unlock()
	if ok {
		windows.CloseHandle(h)
	}
	return err
}
