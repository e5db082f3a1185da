package natsbus

import (
	"time"

	"github.com/arloliu/geoparti/types"
)

const (
	// DefaultSubjectPrefix is the subject namespace used when none is configured.
	DefaultSubjectPrefix = "geoparti"

	// DefaultReadyTimeout bounds one readiness probe of a peer.
	DefaultReadyTimeout = time.Second
)

// Option configures a Transport.
type Option func(*options)

type options struct {
	prefix       string
	chunkSize    int
	readyTimeout time.Duration
	logger       types.Logger
}

// WithSubjectPrefix sets the subject namespace.
//
// Independent process sets sharing one NATS deployment must use different prefixes.
//
// Parameters:
//   - prefix: Subject prefix, e.g. "geoparti.mesh-42"
//
// Returns:
//   - Option: Functional option
func WithSubjectPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithChunkSize caps the payload bytes per NATS message.
//
// Larger envelopes are split and reassembled by the receiver. Zero selects
// the server's advertised maximum payload minus header room.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// WithReadyTimeout bounds each readiness probe sent to a peer during New.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.readyTimeout = d
	}
}

// WithLogger sets a logger for dropped or malformed messages.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
