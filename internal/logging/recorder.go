package logging

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/arloliu/geoparti/types"
)

// Level names a log severity as recorded by Recorder.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
	LevelFatal Level = "FATAL"
)

// Entry is one recorded log call.
type Entry struct {
	Level  Level
	Msg    string
	Fields map[string]any
}

// Recorder keeps every entry for later assertions and, when attached to a
// test, echoes it through t.Logf. Fatal fails an attached test.
//
// Safe for concurrent use; partitioner ranks running as goroutines may share one.
type Recorder struct {
	tb testing.TB

	mu      sync.Mutex
	entries []Entry
}

var _ types.Logger = (*Recorder)(nil)

// NewRecorder creates a Recorder. tb may be nil to record silently.
func NewRecorder(tb testing.TB) *Recorder {
	return &Recorder{tb: tb}
}

func (r *Recorder) Debug(msg string, keysAndValues ...any) { r.record(LevelDebug, msg, keysAndValues) }
func (r *Recorder) Info(msg string, keysAndValues ...any)  { r.record(LevelInfo, msg, keysAndValues) }
func (r *Recorder) Warn(msg string, keysAndValues ...any)  { r.record(LevelWarn, msg, keysAndValues) }
func (r *Recorder) Error(msg string, keysAndValues ...any) { r.record(LevelError, msg, keysAndValues) }

func (r *Recorder) Fatal(msg string, keysAndValues ...any) {
	r.record(LevelFatal, msg, keysAndValues)
	if r.tb != nil {
		r.tb.Fatalf("fatal log: %s", msg)
	}
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)

	return out
}

// Messages returns the messages recorded at level, in order.
func (r *Recorder) Messages(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	for _, e := range r.entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}

	return out
}

func (r *Recorder) record(level Level, msg string, keysAndValues []any) {
	e := Entry{Level: level, Msg: msg, Fields: make(map[string]any, len(keysAndValues)/2)}
	var line strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		k := fmt.Sprint(keysAndValues[i])
		var v any = "<missing>"
		if i+1 < len(keysAndValues) {
			v = keysAndValues[i+1]
		}
		e.Fields[k] = v
		fmt.Fprintf(&line, " %s=%v", k, v)
	}

	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	if r.tb != nil {
		r.tb.Helper()
		r.tb.Logf("%s %s%s", level, msg, line.String())
	}
}
