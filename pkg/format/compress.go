package format

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the outer compression layer of a staged input.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

// CompressionFromName picks the compression layer from a file extension.
func CompressionFromName(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// StagedFile is a decompressed copy of a compressed input. Mapping and
// random access need a plain file, so compressed inputs are expanded into
// a temp file first.
type StagedFile struct {
	Path    string
	temp    bool
	Written int64
}

// Close removes the staged copy if one was created.
func (s *StagedFile) Close() error {
	if s == nil || !s.temp {
		return nil
	}
	if err := os.RemoveAll(filepath.Dir(s.Path)); err != nil {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Stage returns a path that the decoders can read directly. Uncompressed
// inputs are returned unchanged; .gz and .zst inputs are expanded into
// tmpDir (os.TempDir when empty) under the original base name minus the
// compression suffix.
func Stage(path, tmpDir string) (*StagedFile, error) {
	comp := CompressionFromName(path)
	if comp == CompressionNone {
		return &StagedFile{Path: path}, nil
	}

	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("open compressed input: %w", err)
	}
	defer src.Close()

	r, closeReader, err := newDecompressor(src, comp)
	if err != nil {
		return nil, err
	}
	defer closeReader()

	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	dir, err := os.MkdirTemp(tmpDir, "affx-stage-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dstPath := filepath.Join(dir, base)

	dst, err := os.Create(dstPath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}

	return &StagedFile{Path: dstPath, temp: true, Written: n}, nil
}

func newDecompressor(r io.Reader, comp Compression) (io.Reader, func(), error) {
	switch comp {
	case CompressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}
