// Package testing provides test utilities for the geoparti library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for exercising the NATS transport and result publisher.
// It follows Go's convention of providing testing utilities in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - ConnectRanks: One client connection per partitioner rank
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - NewTestLogger: Logger writing through testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    geopartitest "github.com/arloliu/geoparti/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    ns, _ := geopartitest.StartEmbeddedNATS(t)
//	    conns := geopartitest.ConnectRanks(t, ns, 4)
//	}
package testing
