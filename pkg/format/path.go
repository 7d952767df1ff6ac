package format

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Location is a library directory plus a file name. Either half may be
// empty; a file name carrying a directory populates both halves.
type Location struct {
	LibPath  string
	FileName string
}

// SetFileName stores name, moving any directory prefix into LibPath.
func (l *Location) SetFileName(name string) {
	idx := strings.LastIndexAny(name, separators)
	if idx < 0 {
		l.FileName = name
		return
	}
	l.LibPath = name[:idx]
	if l.LibPath == "" {
		l.LibPath = name[:idx+1]
	}
	l.FileName = name[idx+1:]
}

// SetLibPath stores the library directory.
func (l *Location) SetLibPath(dir string) {
	l.LibPath = dir
}

// FullPath joins the library directory and the file name.
func (l Location) FullPath() string {
	if l.LibPath == "" {
		return l.FileName
	}
	return l.LibPath + string(os.PathSeparator) + l.FileName
}

// Exists reports whether FullPath names an existing file.
func (l Location) Exists() bool {
	return Exists(l.FullPath())
}

// Stat returns the size of FullPath, mapping a missing file to ErrNotFound.
func (l Location) Stat() (int64, error) {
	path := l.FullPath()
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory: %w", path, ErrNotFound)
	}
	return info.Size(), nil
}

// ChipType is the file name without its extension.
func (l Location) ChipType() string {
	return ChipTypeFromName(l.FileName)
}

// ChipTypeFromName strips the directory and extension from name.
func ChipTypeFromName(name string) string {
	if idx := strings.LastIndexAny(name, separators); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Exists returns true if the file exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
