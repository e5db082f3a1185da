package logging

import (
	"slices"

	"github.com/arloliu/geoparti/types"
)

// fielder is implemented by loggers that can derive a child carrying fixed fields.
type fielder interface {
	With(keysAndValues ...any) types.Logger
}

// With returns a logger that adds keysAndValues in front of every entry's own fields.
//
// Loggers with a With method of their own (SlogLogger, NopLogger, zap's
// SugaredLogger wrapped to return types.Logger) derive the child natively;
// any other Logger is wrapped.
//
// Parameters:
//   - logger: Base logger; nil yields a NopLogger
//   - keysAndValues: Alternating keys and values bound to every entry
//
// Returns:
//   - types.Logger: Logger carrying the bound fields
//
// Example:
//
//	log := logging.With(p.logger, "rank", rank, "run", run)
//	log.Debug("bisection level complete", "level", 2)
func With(logger types.Logger, keysAndValues ...any) types.Logger {
	if logger == nil {
		return NewNop()
	}
	if len(keysAndValues) == 0 {
		return logger
	}
	if f, ok := logger.(fielder); ok {
		return f.With(keysAndValues...)
	}

	return &bound{base: logger, fields: slices.Clone(keysAndValues)}
}

type bound struct {
	base   types.Logger
	fields []any
}

func (b *bound) With(keysAndValues ...any) types.Logger {
	return &bound{base: b.base, fields: b.merge(keysAndValues)}
}

func (b *bound) Debug(msg string, keysAndValues ...any) { b.base.Debug(msg, b.merge(keysAndValues)...) }
func (b *bound) Info(msg string, keysAndValues ...any)  { b.base.Info(msg, b.merge(keysAndValues)...) }
func (b *bound) Warn(msg string, keysAndValues ...any)  { b.base.Warn(msg, b.merge(keysAndValues)...) }
func (b *bound) Error(msg string, keysAndValues ...any) { b.base.Error(msg, b.merge(keysAndValues)...) }
func (b *bound) Fatal(msg string, keysAndValues ...any) { b.base.Fatal(msg, b.merge(keysAndValues)...) }

// merge never appends into b.fields, which children share.
func (b *bound) merge(keysAndValues []any) []any {
	out := make([]any, 0, len(b.fields)+len(keysAndValues))
	out = append(out, b.fields...)

	return append(out, keysAndValues...)
}
