package types

import "context"

// PointSource supplies the process-local points to be partitioned.
//
// Implementations adapt application data (mesh elements, particles, graph
// vertices) into weighted points:
//   - Static: fixed list for testing
//   - Custom: any mesh or particle container exposing coordinates and weights
type PointSource interface {
	// Dimensions returns the coordinate dimensionality of the points (1..3).
	Dimensions() int

	// ListPoints returns the local points.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//
	// Returns:
	//   - []Point: Local points (Owner and Origin are overwritten by the partitioner)
	//   - error: Discovery error (nil on success)
	ListPoints(ctx context.Context) ([]Point, error)
}
