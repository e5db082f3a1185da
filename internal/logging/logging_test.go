package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/geoparti/types"
)

func newBufferedSlog(level slog.Level) (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	handler := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})

	return NewSlog(slog.New(handler)), buf
}

func TestSlogLogger_Levels(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelWarn)

	logger.Debug("level cut chosen", "level", 0)
	logger.Info("partition complete", "points", 10)
	require.Empty(t, buf.String())

	logger.Warn("imbalance tolerance not achieved", "path", "01")
	logger.Error("partition failed", "error", "timeout")

	out := buf.String()
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "path=01")
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "error=timeout")
}

func TestNewSlog_NilUsesDefault(t *testing.T) {
	require.NotNil(t, NewSlog(nil).logger)
}

func TestWith_Slog(t *testing.T) {
	logger, buf := newBufferedSlog(slog.LevelDebug)

	child := With(logger, "rank", 3, "run", uint64(7))
	require.IsType(t, &SlogLogger{}, child, "slog loggers bind natively")

	child.Debug("bisection level complete", "path", "10")
	out := buf.String()
	require.Contains(t, out, "rank=3")
	require.Contains(t, out, "run=7")
	require.Contains(t, out, "path=10")

	buf.Reset()
	logger.Info("unbound")
	require.NotContains(t, buf.String(), "rank=")
}

func TestWith_WrapsPlainLoggers(t *testing.T) {
	rec := NewRecorder(nil)

	parent := With(rec, "rank", 1)
	a := With(parent, "run", 1)
	b := With(parent, "run", 2)

	a.Warn("first", "level", 0)
	b.Error("second")
	parent.Info("third")

	entries := rec.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, map[string]any{"rank": 1, "run": 1, "level": 0}, entries[0].Fields)
	require.Equal(t, map[string]any{"rank": 1, "run": 2}, entries[1].Fields, "siblings must not share fields")
	require.Equal(t, map[string]any{"rank": 1}, entries[2].Fields)
}

func TestWith_Degenerate(t *testing.T) {
	rec := NewRecorder(nil)
	require.Same(t, rec, With(rec))

	require.IsType(t, &NopLogger{}, With(nil, "rank", 0))

	nop := NewNop()
	require.Same(t, nop, With(nop, "rank", 0))
	require.NotPanics(t, func() {
		nop.Fatal("not fatal", "k", "v")
	})
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(t)
	var _ types.Logger = rec

	rec.Debug("d")
	rec.Warn("w1", "odd")
	rec.Warn("w2", "k", "v")

	require.Equal(t, []string{"w1", "w2"}, rec.Messages(LevelWarn))
	require.Equal(t, []string{"d"}, rec.Messages(LevelDebug))
	require.Empty(t, rec.Messages(LevelError))

	entries := rec.Entries()
	require.Equal(t, "<missing>", entries[1].Fields["odd"])
	require.Equal(t, "v", entries[2].Fields["k"])
}

func BenchmarkWith_Nop(b *testing.B) {
	logger := With(NewNop(), "rank", 0, "run", 1)

	for b.Loop() {
		logger.Debug("bisection level complete", "level", 3, "path", "011")
	}
}
