package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/affxfusion/pkg/humanfmt"
)

// recentWindow is the number of item durations averaged for the ETA.
const recentWindow = 10

// ProgressTracker counts finished items (files in a batch, probe sets in
// an export) and estimates the time left. It is safe for concurrent use.
type ProgressTracker struct {
	phase     string
	total     int64
	completed atomic.Int64
	skipped   atomic.Int64
	start     time.Time
	log       zerolog.Logger

	mu     sync.Mutex
	recent [recentWindow]time.Duration
	n      int // durations recorded, capped at recentWindow
	next   int
}

// NewProgressTracker returns a tracker expecting total items.
func NewProgressTracker(phase string, total int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{phase: phase, total: total, start: time.Now(), log: log}
}

// RecordCompletion counts one finished item that took d.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed.Add(1)

	pt.mu.Lock()
	pt.recent[pt.next] = d
	pt.next = (pt.next + 1) % recentWindow
	pt.n = min(pt.n+1, recentWindow)
	pt.mu.Unlock()
}

// RecordSkip counts one item that needed no work.
func (pt *ProgressTracker) RecordSkip() {
	pt.skipped.Add(1)
}

// Progress returns the completed, skipped and total counts.
func (pt *ProgressTracker) Progress() (completed, skipped, total int64) {
	return pt.completed.Load(), pt.skipped.Load(), pt.total
}

// Completed returns the completed count, skips excluded.
func (pt *ProgressTracker) Completed() int64 {
	return pt.completed.Load()
}

// ProgressPct returns the share of items done, 0 to 100.
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	done := pt.completed.Load() + pt.skipped.Load()
	return float64(done) * 100.0 / float64(pt.total)
}

// ETA extrapolates the mean of the most recent item durations over the
// items left. It is zero before the first completion.
func (pt *ProgressTracker) ETA() time.Duration {
	completed := pt.completed.Load()
	remaining := pt.total - completed - pt.skipped.Load()
	if completed == 0 || remaining <= 0 {
		return 0
	}

	pt.mu.Lock()
	var avg time.Duration
	if pt.n > 0 {
		var sum time.Duration
		for _, d := range pt.recent[:pt.n] {
			sum += d
		}
		avg = sum / time.Duration(pt.n)
	} else {
		avg = time.Since(pt.start) / time.Duration(completed)
	}
	pt.mu.Unlock()

	return avg * time.Duration(remaining)
}

type field struct {
	key string
	val any
}

// CompletionEvent builds one structured "something finished" log line.
// Fields are written in the order they were added.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  []field
}

// NewCompletionEvent starts an event of the given kind.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{log: log, event: event, phase: phase, elapsed: elapsed}
}

func (ce *CompletionEvent) add(key string, val any) *CompletionEvent {
	ce.fields = append(ce.fields, field{key, val})
	return ce
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent { return ce.add(key, val) }

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent { return ce.add(key, val) }

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent { return ce.add(key, val) }

// Bytes adds a byte count, plus a readable key_h companion in pretty mode.
func (ce *CompletionEvent) Bytes(key string, n int64) *CompletionEvent {
	ce.add(key, n)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Bytes(n))
	}
	return ce
}

// Count adds a count, plus a readable key_h companion in pretty mode.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.add(key, n)
	if IsPrettyMode() {
		ce.add(key+"_h", humanfmt.Count(n))
	}
	return ce
}

// ProgressFromTracker adds the tracker's counts, percentage and ETA.
func (ce *CompletionEvent) ProgressFromTracker(pt *ProgressTracker) *CompletionEvent {
	completed, skipped, total := pt.Progress()
	ce.add("completed", completed).add("skipped", skipped).add("total", total)
	if total > 0 {
		ce.add("progress_pct", float64(completed+skipped)*100.0/float64(total))
	}
	if eta := pt.ETA(); eta > 0 {
		ce.add("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			ce.add("eta_h", humanfmt.Duration(eta))
		}
	}
	return ce
}

// Throughput adds the byte rate over the event's elapsed time.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed <= 0 {
		return ce
	}
	ce.add("throughput_bps", float64(bytes)/ce.elapsed.Seconds())
	if IsPrettyMode() {
		ce.add("throughput_h", humanfmt.Throughput(bytes, ce.elapsed))
	}
	return ce
}

// Log emits the event at info level.
func (ce *CompletionEvent) Log(msg string) { ce.emit(ce.log.Info(), msg) }

// LogDebug emits the event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) { ce.emit(ce.log.Debug(), msg) }

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())
	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}
	for _, f := range ce.fields {
		e = e.Interface(f.key, f.val)
	}
	e.Msg(msg)
}

// PhaseComplete starts an event for the end of a phase such as a batch read.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// FileRead starts an event for one decoded array file.
func FileRead(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_read", phase, elapsed)
}

// FileWritten starts an event for a finished output file.
func FileWritten(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_written", phase, elapsed)
}
