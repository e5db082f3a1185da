// Package testutil provides shared test utilities and fixtures for integration tests.
//
// This package contains point generators and assertion helpers that check the
// global properties every partitioning run must satisfy, across all ranks:
//   - Conservation: every supplied point is held by exactly one rank, unchanged
//   - Ownership: held points carry the holder's rank, exports agree with holdings
//   - Balance: per-rank weight close to the mean
//
// Note: For NATS server setup, use the github.com/arloliu/geoparti/testing package.
package testutil
