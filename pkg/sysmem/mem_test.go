package sysmem

import (
	"runtime"
	"testing"
)

func TestTotal(t *testing.T) {
	result := Total()
	if result.TotalBytes == 0 {
		t.Fatal("Total() returned 0 bytes")
	}

	switch runtime.GOOS {
	case "linux", "darwin", "windows", "freebsd", "openbsd", "netbsd", "dragonfly":
		if !result.Reliable {
			t.Logf("memory detection not reliable on %s", runtime.GOOS)
		}
	default:
		if result.Reliable || result.TotalBytes != DefaultMemoryBytes {
			t.Errorf("Total() = %+v on %s, want fallback", result, runtime.GOOS)
		}
	}
}

func TestThresholdClamp(t *testing.T) {
	tests := []struct {
		total uint64
		want  int64
	}{
		{total: 0, want: MinMappingThreshold},
		{total: 1 << 30, want: MinMappingThreshold},
		{total: 16 << 30, want: 32 << 20},
		{total: 1 << 40, want: MaxMappingThreshold},
	}
	for _, tt := range tests {
		if got := thresholdFor(tt.total); got != tt.want {
			t.Errorf("thresholdFor(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestPreferMapping(t *testing.T) {
	if PreferMapping(1024) {
		t.Error("PreferMapping(1KB) = true")
	}
	if !PreferMapping(MaxMappingThreshold) {
		t.Error("PreferMapping(max threshold) = false")
	}
}
