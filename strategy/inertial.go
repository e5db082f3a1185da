package strategy

import (
	"context"
	"fmt"

	"github.com/arloliu/geoparti/internal/geometry"
	"github.com/arloliu/geoparti/types"
)

// Inertial cuts along the principal axis of the group's inertia tensor.
type Inertial struct{}

var _ types.AxisStrategy = (*Inertial)(nil)

// NewInertial creates a new inertial axis strategy.
//
// The strategy reduces the center of mass and inertia tensor across the group
// and cuts perpendicular to the eigenvector of the largest eigenvalue, the
// direction along which the points spread the most. Coincident point sets
// fall back to the request's FallbackAxis.
//
// Returns:
//   - *Inertial: Initialized inertial strategy
//
// Example:
//
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithAxisStrategy(strategy.NewInertial()))
func NewInertial() *Inertial {
	return &Inertial{}
}

// SelectAxis returns the principal inertia axis of the group.
func (s *Inertial) SelectAxis(ctx context.Context, r types.Reducer, req types.AxisRequest) (types.Axis, error) {
	if err := checkDimensions(req.Dimensions); err != nil {
		return types.Axis{}, err
	}

	a, err := geometry.Analyze(ctx, r, req.Points, req.Dimensions, req.FallbackAxis)
	if err != nil {
		return types.Axis{}, err
	}

	return a.Axis, nil
}

func checkDimensions(dim int) error {
	if dim < 1 || dim > types.MaxDimensions {
		return fmt.Errorf("%w: got %d", ErrInvalidDimensions, dim)
	}

	return nil
}
