// Package integration holds end-to-end tests that run the partitioner over a
// real (embedded) NATS server.
package integration
