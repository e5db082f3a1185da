package strategy

import (
	"context"

	"github.com/arloliu/geoparti/types"
)

// CoordinateCycle cuts along coordinate axis Level mod Dimensions.
type CoordinateCycle struct{}

var _ types.AxisStrategy = (*CoordinateCycle)(nil)

// NewCoordinateCycle creates a new coordinate-cycling axis strategy.
//
// Level 0 cuts along x, level 1 along y, level 2 along z, then the cycle
// repeats. The axis depends only on the level, so no reductions are issued.
//
// Returns:
//   - *CoordinateCycle: Initialized coordinate-cycle strategy
func NewCoordinateCycle() *CoordinateCycle {
	return &CoordinateCycle{}
}

// SelectAxis returns the coordinate axis for the request level.
func (s *CoordinateCycle) SelectAxis(_ context.Context, _ types.Reducer, req types.AxisRequest) (types.Axis, error) {
	if err := checkDimensions(req.Dimensions); err != nil {
		return types.Axis{}, err
	}

	return types.CoordinateAxis(req.Level % req.Dimensions), nil
}
