// Package median locates weighted cuts along an axis with distributed bisection.
//
// Points are ordered by (projection, ID). The search first bisects the
// projection range; every step costs one sum-reduction of the low-side
// measure. When the projection interval can no longer be halved (many points
// share one projection value) and the tolerance is still unmet, the search
// continues on the identifiers of the points sharing that value, so coincident
// points are split deterministically without extra data exchange.
package median

import (
	"context"
	"fmt"
	"math"

	"github.com/arloliu/geoparti/types"
)

// Request describes one median search.
type Request struct {
	// Axis is the direction points are projected onto.
	Axis types.Axis

	// Points is the process-local point set.
	Points []types.Point

	// Fraction is the target share of the group measure on the low side, in (0, 1).
	Fraction float64

	// Tolerance is the acceptable relative imbalance |low - f*total| / total.
	Tolerance float64

	// MaxIterations bounds the number of measure reductions.
	MaxIterations int
}

// Outcome is the result of a median search.
type Outcome struct {
	// Cut is the best cut found. Cut.Achieved is false when the tolerance was not met.
	Cut types.Cut

	// Min and Max are the global projection extremes.
	Min, Max float64

	// Count is the number of points in the group.
	Count uint64

	// TieSearch reports that the identifier phase ran.
	TieSearch bool
}

type search struct {
	ctx    context.Context
	r      types.Reducer
	req    Request
	proj   []float64
	count  bool
	total  float64
	target float64
	iter   int
	best   types.Cut
	bestD  float64
	seeded bool
}

// Find searches for the cut that puts Fraction of the group's measure on the low side.
//
// The measure is point weight, or point count when the group's total weight is
// zero. All members must call Find together with the same Axis, Fraction,
// Tolerance and MaxIterations.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: Reducer scoped to the active group
//   - req: Search parameters and local points
//
// Returns:
//   - Outcome: Best cut, identical on every member
//   - error: Reducer failure
func Find(ctx context.Context, r types.Reducer, req Request) (Outcome, error) {
	s := &search{ctx: ctx, r: r, req: req, proj: make([]float64, len(req.Points))}

	local := []float64{0, float64(len(req.Points))}
	extent := []float64{math.Inf(1), math.Inf(1)}
	for i, p := range req.Points {
		s.proj[i] = p.Project(req.Axis.Direction)
		local[0] += p.Weight
		extent[0] = math.Min(extent[0], s.proj[i])
		extent[1] = math.Min(extent[1], -s.proj[i])
	}

	sums, err := r.Allreduce(ctx, types.ReduceSum, local)
	if err != nil {
		return Outcome{}, fmt.Errorf("median totals: %w", err)
	}
	extent, err = r.Allreduce(ctx, types.ReduceMin, extent)
	if err != nil {
		return Outcome{}, fmt.Errorf("median extent: %w", err)
	}

	out := Outcome{Min: extent[0], Max: -extent[1], Count: uint64(sums[1])}
	s.count = sums[0] <= 0
	s.total = sums[0]
	if s.count {
		s.total = sums[1]
	}
	s.target = req.Fraction * s.total

	if out.Count == 0 {
		cut := types.ValueCut(req.Axis, 0)
		cut.Target = req.Fraction
		cut.CountMode = true
		cut.Achieved = true
		out.Cut = cut

		return out, nil
	}

	// Value cut at lo puts nothing low; value cut at hi puts everything low.
	lo, hi := math.Nextafter(out.Min, math.Inf(-1)), out.Max
	wLo, wHi := 0.0, s.total
	s.offer(types.ValueCut(req.Axis, lo), wLo)
	s.offer(types.ValueCut(req.Axis, hi), wHi)

	exhausted := false
	for !s.achieved() && s.iter < req.MaxIterations {
		mid := lo/2 + hi/2
		if mid <= lo || mid >= hi {
			exhausted = true
			break
		}
		cut := types.ValueCut(req.Axis, mid)
		w, err := s.measure(cut)
		if err != nil {
			return Outcome{}, err
		}
		s.offer(cut, w)
		if w < s.target {
			lo, wLo = mid, w
		} else {
			hi, wHi = mid, w
		}
	}

	if exhausted && !s.achieved() {
		out.TieSearch = true
		if err := s.tieSearch(lo, hi); err != nil {
			return Outcome{}, err
		}
	}

	out.Cut = s.finish()

	return out, nil
}

// tieSearch bisects on identifiers among points projecting into (lo, hi].
func (s *search) tieSearch(lo, hi float64) error {
	// [min id, MaxUint64 - max id] over the band
	band := []uint64{math.MaxUint64, math.MaxUint64}
	for i, p := range s.req.Points {
		if s.proj[i] > lo && s.proj[i] <= hi {
			band[0] = min(band[0], p.ID)
			band[1] = min(band[1], math.MaxUint64-p.ID)
		}
	}

	band, err := s.r.AllreduceUint64(s.ctx, types.ReduceMin, band)
	if err != nil {
		return fmt.Errorf("median tie band: %w", err)
	}
	minID, maxID := band[0], math.MaxUint64-band[1]
	if minID > maxID {
		return nil
	}

	// Offsets from minID. Offset a (TieID = minID+a) puts band ids < minID+a low.
	// The upper end is the virtual offset span+1 where the whole band is low.
	span := maxID - minID
	var a, b uint64
	bAll := true
	for !s.achieved() && s.iter < s.req.MaxIterations {
		var mid uint64
		if bAll {
			if span-a == 0 {
				break
			}
			mid = a + (span-a)/2 + 1
		} else {
			if b-a <= 1 {
				break
			}
			mid = a + (b-a)/2
		}

		cut := types.Cut{Axis: s.req.Axis, Lower: lo, Upper: hi, TieID: minID + mid}
		w, err := s.measure(cut)
		if err != nil {
			return err
		}
		s.offer(cut, w)
		if w < s.target {
			a = mid
		} else {
			b, bAll = mid, false
		}
	}

	return nil
}

// measure returns the group-wide low-side measure of cut.
func (s *search) measure(cut types.Cut) (float64, error) {
	local := 0.0
	for i, p := range s.req.Points {
		if cut.IsLowProjected(s.proj[i], p.ID) {
			if s.count {
				local++
			} else {
				local += p.Weight
			}
		}
	}

	s.iter++
	global, err := s.r.Allreduce(s.ctx, types.ReduceSum, []float64{local})
	if err != nil {
		return 0, fmt.Errorf("median iteration %d: %w", s.iter, err)
	}

	return global[0], nil
}

// offer records cut as the best candidate if it is strictly closer to the target.
func (s *search) offer(cut types.Cut, low float64) {
	d := math.Abs(low - s.target)
	if !s.seeded || d < s.bestD {
		cut.LowMeasure = low
		cut.TotalMeasure = s.total
		cut.Target = s.req.Fraction
		cut.CountMode = s.count
		s.best = cut
		s.bestD = d
		s.seeded = true
	}
}

func (s *search) achieved() bool {
	return s.bestD <= s.req.Tolerance*s.total
}

func (s *search) finish() types.Cut {
	cut := s.best
	cut.Iterations = s.iter
	cut.Achieved = s.achieved()

	return cut
}
