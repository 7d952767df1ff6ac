// Package sysmem detects total system RAM and uses it to decide when array
// files are better memory mapped than decoded into the heap.
package sysmem

// DefaultMemoryBytes is the fallback memory value (4 GB) used when
// platform-specific detection fails or is unsupported.
const DefaultMemoryBytes uint64 = 4 * 1024 * 1024 * 1024

// Bounds for the size above which files are mapped in auto mode.
const (
	MinMappingThreshold int64 = 8 << 20
	MaxMappingThreshold int64 = 256 << 20
)

// Result holds the result of memory detection.
type Result struct {
	// TotalBytes is the total system memory in bytes.
	TotalBytes uint64

	// Reliable is false when TotalBytes is DefaultMemoryBytes because
	// detection failed.
	Reliable bool
}

// Total returns the total system memory, or DefaultMemoryBytes with
// Reliable=false when it cannot be detected.
func Total() Result {
	bytes, ok := totalSystemMemory()
	if !ok || bytes == 0 {
		return Result{TotalBytes: DefaultMemoryBytes}
	}
	return Result{TotalBytes: bytes, Reliable: true}
}

// TotalBytes returns just the memory value.
func TotalBytes() uint64 {
	return Total().TotalBytes
}

// MappingThreshold is 1/512 of system RAM clamped to
// [MinMappingThreshold, MaxMappingThreshold]. A fully decoded CDF is several
// times its file size, so the heap cost grows quickly past this point.
func MappingThreshold() int64 {
	return thresholdFor(TotalBytes())
}

func thresholdFor(total uint64) int64 {
	t := int64(total / 512)
	if t < MinMappingThreshold {
		return MinMappingThreshold
	}
	if t > MaxMappingThreshold {
		return MaxMappingThreshold
	}
	return t
}

// PreferMapping reports whether a file of size bytes should be mapped.
func PreferMapping(size int64) bool {
	return size >= MappingThreshold()
}
