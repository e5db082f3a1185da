// Package source provides built-in point source implementations.
//
// Point sources supply the process-local points a partitioner balances.
// The package includes:
//
//   - Static: Fixed list of points
//
// Custom sources (mesh, particle or graph adapters) can be implemented by
// satisfying the types.PointSource interface.
package source
