package geoparti

import "github.com/arloliu/geoparti/types"

// Sentinel errors returned by the Partitioner.
//
// They are re-exported from the types package so that callers can match them
// with errors.Is without importing types.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTransportRequired is returned when the transport is nil.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrInvalidInput is returned on every process when any process supplied
	// malformed input or a configuration differing from its peers.
	ErrInvalidInput = types.ErrInvalidInput

	// ErrUnknownAxisPolicy is returned when the configured axis policy is not recognized.
	ErrUnknownAxisPolicy = types.ErrUnknownAxisPolicy

	// ErrCommunication is returned when a collective or migration exchange fails.
	ErrCommunication = types.ErrCommunication

	// ErrAborted is returned when a peer process aborted the run.
	ErrAborted = types.ErrAborted

	// ErrTransportClosed is returned when the transport was closed during a run.
	ErrTransportClosed = types.ErrTransportClosed
)
