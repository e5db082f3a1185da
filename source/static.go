package source

import (
	"context"
	"sync"

	"github.com/arloliu/geoparti/types"
)

// Static implements a point source with a fixed list of points.
type Static struct {
	mu         sync.RWMutex
	dimensions int
	points     []types.Point
}

var _ types.PointSource = (*Static)(nil)

// NewStatic creates a new static point source.
//
// The source returns a fixed list of points that only changes through Update.
// Useful for testing and for callers that already hold their points in memory.
//
// Parameters:
//   - dimensions: Coordinate dimensionality of the points (1..3)
//   - points: Process-local points
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic(2, []types.Point{
//	    {ID: 1, Coords: [3]float64{0.5, 1.0}, Weight: 3},
//	    {ID: 2, Coords: [3]float64{2.0, 0.1}, Weight: 1},
//	})
//	res, err := p.PartitionSource(ctx, src)
func NewStatic(dimensions int, points []types.Point) *Static {
	s := &Static{dimensions: dimensions}
	s.points = make([]types.Point, len(points))
	copy(s.points, points)

	return s
}

// Dimensions returns the coordinate dimensionality.
func (s *Static) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.dimensions
}

// ListPoints returns a copy of the point list.
//
// Returns:
//   - []types.Point: The current points
//   - error: Always nil (never fails)
func (s *Static) ListPoints(_ context.Context) ([]types.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]types.Point, len(s.points))
	copy(result, s.points)

	return result, nil
}

// Update replaces the point list.
//
// Example:
//
//	src := source.NewStatic(3, initial)
//	// After the workload moved
//	src.Update(moved)
func (s *Static) Update(points []types.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = make([]types.Point, len(points))
	copy(s.points, points)
}
