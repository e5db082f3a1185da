package testutil

import (
	"math"
	"testing"

	"github.com/arloliu/geoparti/types"
)

// AssertPartitionConsistent verifies the global invariants of one partitioning run.
//
// Checks performed:
//   - results has one entry per rank, in rank order
//   - every supplied point is held by exactly one rank with unchanged coordinates and weight
//   - every held point has Owner equal to the holder and Origin equal to its supplier
//   - each supplier's Assignment agrees with where its points actually ended
//
// Parameters:
//   - t: testing handle
//   - inputs: Points supplied per rank
//   - results: Results returned per rank
func AssertPartitionConsistent(t *testing.T, inputs [][]types.Point, results []*types.Result) {
	t.Helper()

	if len(results) != len(inputs) {
		t.Fatalf("got %d results for %d ranks", len(results), len(inputs))
	}

	type supplied struct {
		point  types.Point
		origin int
	}
	want := make(map[uint64]supplied)
	for rank, points := range inputs {
		for _, p := range points {
			if _, ok := want[p.ID]; ok {
				t.Fatalf("test input reuses point id %d", p.ID)
			}
			want[p.ID] = supplied{point: p, origin: rank}
		}
	}

	holder := make(map[uint64]int, len(want))
	for rank, res := range results {
		if res == nil {
			t.Fatalf("rank %d returned no result", rank)
		}
		if res.Rank != rank || res.Size != len(inputs) {
			t.Fatalf("rank %d result reports rank %d of %d", rank, res.Rank, res.Size)
		}
		for _, p := range res.Points {
			if prev, ok := holder[p.ID]; ok {
				t.Fatalf("point %d held by ranks %d and %d", p.ID, prev, rank)
			}
			holder[p.ID] = rank

			s, ok := want[p.ID]
			if !ok {
				t.Fatalf("rank %d holds unknown point %d", rank, p.ID)
			}
			if p.Coords != s.point.Coords || p.Weight != s.point.Weight {
				t.Fatalf("point %d changed in transit: %+v -> %+v", p.ID, s.point, p)
			}
			if p.Owner != rank {
				t.Fatalf("point %d on rank %d has owner %d", p.ID, rank, p.Owner)
			}
			if p.Origin != s.origin {
				t.Fatalf("point %d has origin %d, supplied by %d", p.ID, p.Origin, s.origin)
			}
		}
	}

	if len(holder) != len(want) {
		t.Fatalf("%d points held, %d supplied", len(holder), len(want))
	}

	for rank, points := range inputs {
		assignment := results[rank].Assignment()
		if len(assignment) != len(points) {
			t.Fatalf("rank %d assignment covers %d of its %d points", rank, len(assignment), len(points))
		}
		for _, p := range points {
			if got := assignment[p.ID]; got != holder[p.ID] {
				t.Fatalf("rank %d believes point %d went to %d, held by %d", rank, p.ID, got, holder[p.ID])
			}
		}
	}
}

// AssertBalanced verifies that every rank's weight is within tolerance of the mean.
//
// Parameters:
//   - t: testing handle
//   - results: Results returned per rank
//   - tolerance: Largest accepted |w - mean| / mean
func AssertBalanced(t *testing.T, results []*types.Result, tolerance float64) {
	t.Helper()

	total := 0.0
	for _, res := range results {
		total += res.Weight()
	}
	mean := total / float64(len(results))
	if mean == 0 {
		return
	}

	for _, res := range results {
		if dev := math.Abs(res.Weight()-mean) / mean; dev > tolerance {
			t.Fatalf("rank %d weight %v deviates %.4f from mean %v (tolerance %.4f)",
				res.Rank, res.Weight(), dev, mean, tolerance)
		}
	}
}
