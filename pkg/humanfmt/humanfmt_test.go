package humanfmt

import (
	"testing"
	"time"
)

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-5, "-5 B"},
		{0, "0 B"},
		{1023, "1023 B"},
		{KiB, "1.00 KiB"},
		{1536, "1.50 KiB"},
		{10 * MiB, "10.00 MiB"},
		{GiB, "1.00 GiB"},
		{2048 * TiB, "2048.00 TiB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.in); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestThroughput(t *testing.T) {
	tests := []struct {
		bytes int64
		d     time.Duration
		want  string
	}{
		{100, time.Second, "100 B/s"},
		{MiB, time.Second, "1.00 MiB/s"},
		{GiB, 2 * time.Second, "512.00 MiB/s"},
		{KiB, 0, "∞"},
	}
	for _, tt := range tests {
		if got := Throughput(tt.bytes, tt.d); got != tt.want {
			t.Errorf("Throughput(%d, %v) = %q, want %q", tt.bytes, tt.d, got, tt.want)
		}
	}
}

func TestCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{-3, "-3"},
		{999, "999"},
		{1000, "1.00K"},
		{1_500_000, "1.50M"},
		{6_553_600, "6.55M"},
		{2_000_000_000, "2.00B"},
		{5_000_000_000_000, "5000.00B"},
	}
	for _, tt := range tests {
		if got := Count(tt.in); got != tt.want {
			t.Errorf("Count(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1.5µs"},
		{45600 * time.Microsecond, "45.6ms"},
		{1230 * time.Millisecond, "1.23s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Minute, "2m"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{3 * time.Hour, "3h"},
		{-time.Second, "-1s"},
	}
	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
