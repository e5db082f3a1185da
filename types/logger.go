package types

// Logger defines methods for structured logging.
//
// Compatible with zap.SugaredLogger and slog-style loggers: every method
// accepts alternating key-value pairs for structured fields.
type Logger interface {
	// Debug logs per-level diagnostics (cuts, weights, migration counts).
	Debug(msg string, keysAndValues ...any)

	// Info logs call-level progress.
	Info(msg string, keysAndValues ...any)

	// Warn logs quality warnings and non-recommended configuration.
	Warn(msg string, keysAndValues ...any)

	// Error logs fatal outcomes before they are propagated to peers.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message and terminates the process.
	// Test and no-op implementations may choose not to exit.
	Fatal(msg string, keysAndValues ...any)
}
