package types

import "context"

// AxisRequest carries the inputs of one axis selection.
type AxisRequest struct {
	// Points is the process-local point set.
	Points []Point

	// Dimensions is the number of coordinate axes in use (1..MaxDimensions).
	Dimensions int

	// Level is the recursion depth of the group being split.
	Level int

	// FallbackAxis is the coordinate used when the geometry is degenerate.
	FallbackAxis int
}

// AxisStrategy selects the direction a group's points are cut along.
//
// Strategies implement different axis-selection policies:
//   - Inertial: principal axis of the inertia tensor (recursive inertial bisection)
//   - CoordinateCycle: coordinate axis Level mod Dimensions (recursive coordinate bisection)
//   - LongestExtent: coordinate with the widest global bounding box
//
// SelectAxis is a collective call: every member of the group calls it with its
// local points and receives the same axis.
type AxisStrategy interface {
	// SelectAxis computes the cut direction for the group.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - r: Reducer scoped to the active group
	//   - req: Local points and level metadata
	//
	// Returns:
	//   - Axis: Unit direction shared by all group members
	//   - error: Communication error from the reducer
	SelectAxis(ctx context.Context, r Reducer, req AxisRequest) (Axis, error)
}
