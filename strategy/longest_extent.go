package strategy

import (
	"context"

	"github.com/arloliu/geoparti/internal/geometry"
	"github.com/arloliu/geoparti/types"
)

// LongestExtent cuts along the coordinate axis with the widest bounding box.
type LongestExtent struct{}

var _ types.AxisStrategy = (*LongestExtent)(nil)

// NewLongestExtent creates a new longest-extent axis strategy.
//
// The strategy reduces the group's bounding box and picks the coordinate with
// the largest max-min spread; ties go to the lowest coordinate index. A group
// without spread on any axis falls back to the request's FallbackAxis.
//
// Returns:
//   - *LongestExtent: Initialized longest-extent strategy
func NewLongestExtent() *LongestExtent {
	return &LongestExtent{}
}

// SelectAxis returns the coordinate axis of largest global extent.
func (s *LongestExtent) SelectAxis(ctx context.Context, r types.Reducer, req types.AxisRequest) (types.Axis, error) {
	if err := checkDimensions(req.Dimensions); err != nil {
		return types.Axis{}, err
	}

	lo, hi, err := geometry.Bounds(ctx, r, req.Points, req.Dimensions)
	if err != nil {
		return types.Axis{}, err
	}

	best, width := -1, 0.0
	for d := range req.Dimensions {
		if w := hi[d] - lo[d]; w > width {
			best, width = d, w
		}
	}
	if best < 0 {
		axis := types.CoordinateAxis(req.FallbackAxis)
		axis.Degenerate = true

		return axis, nil
	}

	axis := types.CoordinateAxis(best)
	for d := range req.Dimensions {
		if hi[d] >= lo[d] {
			axis.Center[d] = lo[d]/2 + hi[d]/2
		}
	}

	return axis, nil
}
