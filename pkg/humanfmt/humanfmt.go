// Package humanfmt renders sizes, counts, rates and durations for log
// companions and CLI text output.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

var (
	byteUnits  = []string{"KiB", "MiB", "GiB", "TiB"}
	countUnits = []string{"K", "M", "B"}
)

// scale divides v by base until it drops below base or the units run out.
// It returns the scaled value and the unit index, -1 meaning unscaled.
func scale(v, base float64, n int) (float64, int) {
	unit := -1
	for v >= base && unit < n-1 {
		v /= base
		unit++
	}
	return v, unit
}

// Bytes formats a byte count with IEC units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	if b < KiB {
		return fmt.Sprintf("%d B", b)
	}
	v, u := scale(float64(b), KiB, len(byteUnits))
	return fmt.Sprintf("%.2f %s", v, byteUnits[u])
}

// Throughput formats bytes per duration, e.g. "123.40 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	rate := float64(bytes) / d.Seconds()
	if rate < KiB {
		return fmt.Sprintf("%.0f B/s", rate)
	}
	v, u := scale(rate, KiB, len(byteUnits))
	return fmt.Sprintf("%.2f %s/s", v, byteUnits[u])
}

// Count formats a cell or row count with SI suffixes, e.g. "1.50M".
func Count(n int64) string {
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	v, u := scale(float64(n), 1000, len(countUnits))
	return fmt.Sprintf("%.2f%s", v, countUnits[u])
}

// Duration formats d compactly: "2h15m", "1m30s", "1.23s", "45.6ms".
func Duration(d time.Duration) string {
	switch {
	case d < 0:
		return d.String()
	case d >= time.Hour:
		return trimZero(d/time.Hour, "h", (d%time.Hour)/time.Minute, "m")
	case d >= time.Minute:
		return trimZero(d/time.Minute, "m", (d%time.Minute)/time.Second, "s")
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

func trimZero(major time.Duration, mu string, minor time.Duration, nu string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, mu)
	}
	return fmt.Sprintf("%d%s%d%s", major, mu, minor, nu)
}
