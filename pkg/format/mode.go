package format

import (
	"fmt"
	"strings"
)

// Mode selects how binary files are accessed.
type Mode int

const (
	// ModeAuto maps large XDA files and streams small ones.
	ModeAuto Mode = iota
	// ModeStream decodes the whole file into memory.
	ModeStream
	// ModeMapped memory maps XDA files and decodes records on demand.
	ModeMapped
)

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeMapped:
		return "mapped"
	default:
		return "auto"
	}
}

// ParseMode accepts the names printed by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "stream", "streaming":
		return ModeStream, nil
	case "mapped", "mmap":
		return ModeMapped, nil
	}
	return ModeAuto, fmt.Errorf("unknown access mode %q", s)
}
