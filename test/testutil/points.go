package testutil

import (
	"math/rand"

	"github.com/arloliu/geoparti/types"
)

// RandomPoints generates n points with uniform coordinates in [0, 1)^dims.
//
// Weights are integers in [1, maxWeight] so sums are exact in float64.
// IDs start at idBase. A maxWeight of 0 produces zero-weight points.
//
// Parameters:
//   - seed: Random seed; equal seeds produce equal points
//   - n: Number of points
//   - dims: Number of populated coordinates
//   - maxWeight: Largest weight
//   - idBase: First identifier
//
// Returns:
//   - []types.Point: Generated points
func RandomPoints(seed int64, n, dims, maxWeight int, idBase uint64) []types.Point {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	points := make([]types.Point, n)
	for i := range points {
		points[i].ID = idBase + uint64(i)
		for d := range dims {
			points[i].Coords[d] = rng.Float64()
		}
		if maxWeight > 0 {
			points[i].Weight = float64(1 + rng.Intn(maxWeight))
		}
	}

	return points
}

// Deal distributes points round-robin over size ranks.
func Deal(points []types.Point, size int) [][]types.Point {
	inputs := make([][]types.Point, size)
	for i := range inputs {
		inputs[i] = make([]types.Point, 0, len(points)/size+1)
	}
	for i, p := range points {
		inputs[i%size] = append(inputs[i%size], p)
	}

	return inputs
}

// TotalWeight sums the weight of points.
func TotalWeight(points []types.Point) float64 {
	total := 0.0
	for _, p := range points {
		total += p.Weight
	}

	return total
}
