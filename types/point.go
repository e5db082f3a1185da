package types

import "math"

// MaxDimensions is the largest supported coordinate dimensionality.
const MaxDimensions = 3

// Point represents a weighted spatial object to be partitioned.
//
// A point is the unit of load balancing. Its coordinates locate it in space,
// its weight is the computational cost it carries, and its ID identifies it
// globally across all processes.
type Point struct {
	// ID uniquely identifies this point across all processes.
	// IDs also order points that project onto the same cut value.
	ID uint64 `json:"id"`

	// Coords holds the point location. Axes beyond the configured
	// dimensionality are ignored and should be zero.
	Coords [MaxDimensions]float64 `json:"coords"`

	// Weight is the non-negative processing cost of this point.
	Weight float64 `json:"weight"`

	// Owner is the rank of the process currently holding the point.
	Owner int `json:"owner"`

	// Origin is the rank of the process that supplied the point.
	Origin int `json:"origin"`
}

// Project returns the scalar projection of the point onto direction.
//
// Parameters:
//   - direction: Axis direction (not required to be normalized)
//
// Returns:
//   - float64: Dot product of the point coordinates and direction
func (p Point) Project(direction [MaxDimensions]float64) float64 {
	return p.Coords[0]*direction[0] + p.Coords[1]*direction[1] + p.Coords[2]*direction[2]
}

// Axis describes the direction a point set is cut along.
type Axis struct {
	// Direction is a unit vector.
	Direction [MaxDimensions]float64 `json:"direction"`

	// Index is the coordinate index for coordinate-aligned axes, -1 otherwise.
	Index int `json:"index"`

	// Center is the weighted center of mass of the group, when computed.
	Center [MaxDimensions]float64 `json:"center"`

	// Eigenvalue is the principal moment of inertia for inertial axes.
	Eigenvalue float64 `json:"eigenvalue"`

	// Residual is the normalized eigen-residual ||Av - λv|| / ||A||∞ for inertial axes.
	Residual float64 `json:"residual"`

	// Degenerate reports that the geometry collapsed and the fallback axis was used.
	Degenerate bool `json:"degenerate"`
}

// CoordinateAxis returns the unit axis along coordinate index.
//
// Parameters:
//   - index: Coordinate index in [0, MaxDimensions)
//
// Returns:
//   - Axis: Coordinate-aligned axis
func CoordinateAxis(index int) Axis {
	var axis Axis
	axis.Direction[index] = 1
	axis.Index = index

	return axis
}

// Cut separates a point set into a low and a high side.
//
// Points are ordered by the pair (projection, ID). A point is on the low side when
// its projection is at most Lower, or when its projection lies in (Lower, Upper]
// and its ID is strictly less than TieID. When Lower == Upper the band is empty and
// the cut is a plain value cut.
type Cut struct {
	// Axis is the direction points are projected onto.
	Axis Axis `json:"axis"`

	// Lower is the projection value at or below which every point is low.
	Lower float64 `json:"lower"`

	// Upper bounds the tie band (Lower, Upper].
	Upper float64 `json:"upper"`

	// TieID splits the tie band by identifier.
	TieID uint64 `json:"tieId"`

	// Target is the requested low-side fraction.
	Target float64 `json:"target"`

	// LowMeasure is the realized measure (weight or count) on the low side.
	LowMeasure float64 `json:"lowMeasure"`

	// TotalMeasure is the group-wide measure (weight or count).
	TotalMeasure float64 `json:"totalMeasure"`

	// CountMode reports that the group had zero total weight and was split by point count.
	CountMode bool `json:"countMode"`

	// Iterations is the number of distributed reductions spent searching.
	Iterations int `json:"iterations"`

	// Achieved reports whether the imbalance tolerance was met.
	Achieved bool `json:"achieved"`
}

// ValueCut returns a cut with an empty tie band at value.
func ValueCut(axis Axis, value float64) Cut {
	return Cut{Axis: axis, Lower: value, Upper: value}
}

// IsLow reports whether p falls on the low side of the cut.
func (c Cut) IsLow(p Point) bool {
	return c.IsLowProjected(p.Project(c.Axis.Direction), p.ID)
}

// IsLowProjected reports whether a point with the given projection and ID falls
// on the low side of the cut.
func (c Cut) IsLowProjected(proj float64, id uint64) bool {
	if proj <= c.Lower {
		return true
	}

	return proj <= c.Upper && id < c.TieID
}

// Imbalance returns the relative deviation |low - target*total| / total.
//
// Returns:
//   - float64: Relative imbalance (0 for an empty group)
func (c Cut) Imbalance() float64 {
	if c.TotalMeasure <= 0 {
		return 0
	}

	return math.Abs(c.LowMeasure-c.Target*c.TotalMeasure) / c.TotalMeasure
}
