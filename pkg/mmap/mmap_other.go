//go:build !unix && !windows

package mmap

import (
	"errors"
	"os"
)

func mapFile(*os.File, int) ([]byte, error) {
	return nil, errors.New("memory mapping is not supported on this platform")
}

func unmapFile([]byte) error {
	return nil
}
