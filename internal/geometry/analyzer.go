// Package geometry computes the distributed geometric summaries a bisection step needs.
//
// Every function here is a collective over the supplied Reducer: all members
// of the group call it with their local points and observe identical results.
package geometry

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/geoparti/internal/eigen"
	"github.com/arloliu/geoparti/types"
)

// degenerateRatio bounds the tensor trace, relative to the group's scale, below
// which the point cloud is treated as coincident.
const degenerateRatio = 1e-24

// Analysis is the result of one inertia analysis.
type Analysis struct {
	// Center is the weighted center of mass.
	Center [types.MaxDimensions]float64

	// Tensor is the dim x dim inertia tensor about Center.
	Tensor [][]float64

	// TotalWeight is the group's total weight.
	TotalWeight float64

	// Count is the group's total number of points.
	Count uint64

	// CountMode reports that the group had zero weight and every point counted as 1.
	CountMode bool

	// Axis is the principal axis, or the fallback coordinate axis when Degenerate.
	Axis types.Axis

	// Sweeps is the number of Jacobi sweeps spent (0 when degenerate).
	Sweeps int
}

// Analyze computes the center of mass, the inertia tensor and its principal axis.
//
// Two sum-reductions are issued: one for the zeroth and first moments, one for
// the upper triangle of the second-moment tensor. A group with zero total
// weight is analyzed with unit weights. A group whose tensor collapses
// (coincident or no points) yields the fallback coordinate axis with
// Degenerate set instead of an error.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: Reducer scoped to the active group
//   - points: Process-local points
//   - dim: Dimensionality in use (1..MaxDimensions)
//   - fallback: Coordinate index used for degenerate geometry
//
// Returns:
//   - Analysis: Group-wide geometry, identical on every member
//   - error: Reducer failure
func Analyze(ctx context.Context, r types.Reducer, points []types.Point, dim int, fallback int) (Analysis, error) {
	// [Σw, n, Σw·x_0..Σw·x_dim-1, Σx_0..Σx_dim-1]
	moments := make([]float64, 2+2*dim)
	for _, p := range points {
		moments[0] += p.Weight
		moments[1]++
		for d := range dim {
			moments[2+d] += p.Weight * p.Coords[d]
			moments[2+dim+d] += p.Coords[d]
		}
	}

	moments, err := r.Allreduce(ctx, types.ReduceSum, moments)
	if err != nil {
		return Analysis{}, fmt.Errorf("center of mass: %w", err)
	}

	a := Analysis{
		TotalWeight: moments[0],
		Count:       uint64(moments[1]),
	}
	a.CountMode = a.TotalWeight <= 0

	mass := a.TotalWeight
	first := moments[2 : 2+dim]
	if a.CountMode {
		mass = moments[1]
		first = moments[2+dim:]
	}
	if mass > 0 {
		for d := range dim {
			a.Center[d] = first[d] / mass
		}
	}

	upper := make([]float64, dim*(dim+1)/2)
	for _, p := range points {
		w := p.Weight
		if a.CountMode {
			w = 1
		}
		k := 0
		for i := range dim {
			di := p.Coords[i] - a.Center[i]
			for j := i; j < dim; j++ {
				upper[k] += w * di * (p.Coords[j] - a.Center[j])
				k++
			}
		}
	}

	upper, err = r.Allreduce(ctx, types.ReduceSum, upper)
	if err != nil {
		return Analysis{}, fmt.Errorf("inertia tensor: %w", err)
	}

	a.Tensor = make([][]float64, dim)
	for i := range dim {
		a.Tensor[i] = make([]float64, dim)
	}
	k := 0
	trace := 0.0
	for i := range dim {
		for j := i; j < dim; j++ {
			a.Tensor[i][j] = upper[k]
			a.Tensor[j][i] = upper[k]
			k++
		}
		trace += a.Tensor[i][i]
	}

	scale := 0.0
	for d := range dim {
		scale += a.Center[d] * a.Center[d]
	}
	if mass <= 0 || !(trace > degenerateRatio*mass*math.Max(1, scale)) {
		a.Axis = types.CoordinateAxis(fallback)
		a.Axis.Center = a.Center
		a.Axis.Degenerate = true

		return a, nil
	}

	dec, err := eigen.Jacobi(a.Tensor, eigen.Options{})
	if err != nil {
		return Analysis{}, fmt.Errorf("principal axis: %w", err)
	}
	value, vec := dec.Principal()

	a.Sweeps = dec.Sweeps
	a.Axis = types.Axis{
		Index:      -1,
		Center:     a.Center,
		Eigenvalue: value,
		Residual:   eigen.Residual(a.Tensor, value, vec),
	}
	for d := range dim {
		a.Axis.Direction[d] = vec[d]
	}
	if idx := coordinateIndex(a.Axis.Direction); idx >= 0 {
		a.Axis.Index = idx
	}

	return a, nil
}

// Bounds returns the global bounding box of the group's points.
//
// A single min-reduction over (x, -x) yields both corners. For an empty group
// min is +Inf and max is -Inf on every axis.
//
// Returns:
//   - lo: Per-axis minimum (axes beyond dim are 0)
//   - hi: Per-axis maximum (axes beyond dim are 0)
//   - error: Reducer failure
func Bounds(ctx context.Context, r types.Reducer, points []types.Point, dim int) (lo, hi [types.MaxDimensions]float64, err error) {
	local := make([]float64, 2*dim)
	for d := range dim {
		local[d] = math.Inf(1)
		local[dim+d] = math.Inf(1)
	}
	for _, p := range points {
		for d := range dim {
			local[d] = math.Min(local[d], p.Coords[d])
			local[dim+d] = math.Min(local[dim+d], -p.Coords[d])
		}
	}

	global, err := r.Allreduce(ctx, types.ReduceMin, local)
	if err != nil {
		return lo, hi, fmt.Errorf("bounding box: %w", err)
	}
	for d := range dim {
		lo[d] = global[d]
		hi[d] = -global[dim+d]
	}

	return lo, hi, nil
}

// coordinateIndex returns the coordinate a unit direction is aligned with, or -1.
func coordinateIndex(dir [types.MaxDimensions]float64) int {
	idx := -1
	for d, x := range dir {
		switch x {
		case 0:
		case 1:
			if idx >= 0 {
				return -1
			}
			idx = d
		default:
			return -1
		}
	}

	return idx
}
