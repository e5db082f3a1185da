// Package types provides core type definitions and interfaces for the geoparti library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root geoparti package and its internal implementations.
//
// Key types:
//   - Point: Weighted spatial object
//   - Axis, Cut: Per-level bisection descriptors
//   - Result: Process-local partition assignment
//   - Transport, Reducer: Communication contracts
//   - AxisStrategy: Axis-selection policy
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
