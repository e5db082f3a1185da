package types

import "errors"

// Sentinel errors for the geoparti library.
//
// These errors provide type-safe error checking using errors.Is().
// Components wrap them with context using fmt.Errorf("%s: %w", msg, err).

// Partitioner errors - Public API errors returned by the Partitioner.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = errors.New("transport is required")

	// ErrInvalidInput is returned for malformed input: a non-positive process count,
	// dimensionality that differs between processes, or a negative or non-finite
	// weight or coordinate. No partial partition is produced.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownAxisPolicy is returned when the configured axis policy is not recognized.
	ErrUnknownAxisPolicy = errors.New("unknown axis policy")
)

// Communication errors - Transport and collective failures.
//
// All of these are fatal for the partitioning call: no consistent assignment
// can be guaranteed once a collective or a migration exchange fails.
var (
	// ErrCommunication is returned when a collective or migration exchange fails:
	// a peer is unreachable, a receive times out, or a message is malformed.
	ErrCommunication = errors.New("communication failure")

	// ErrAborted is returned when a peer process aborted the partitioning run.
	ErrAborted = errors.New("partitioning aborted by peer")

	// ErrTransportClosed is returned when sending on or receiving from a closed transport.
	ErrTransportClosed = errors.New("transport closed")

	// ErrInvalidRank is returned when a message is addressed to a rank outside the transport.
	ErrInvalidRank = errors.New("invalid rank")

	// ErrDuplicateMessage is returned when two messages arrive for the same receive slot.
	ErrDuplicateMessage = errors.New("duplicate message")
)

// IsCommunicationError reports whether err stems from the communication substrate.
func IsCommunicationError(err error) bool {
	return errors.Is(err, ErrCommunication) ||
		errors.Is(err, ErrAborted) ||
		errors.Is(err, ErrTransportClosed) ||
		errors.Is(err, ErrInvalidRank) ||
		errors.Is(err, ErrDuplicateMessage)
}
