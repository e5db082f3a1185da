// Package logging provides the types.Logger implementations geoparti ships with.
//
// SlogLogger adapts log/slog, NopLogger discards everything and Recorder keeps
// entries in memory for assertions. With binds fields such as rank and run to
// any of them, so call sites log only what is specific to the event.
package logging
