package geometry

import (
	"context"
	"math"
	"testing"

	"github.com/arloliu/geoparti/internal/collective"
	"github.com/arloliu/geoparti/transport/memory"
	"github.com/arloliu/geoparti/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// single is the identity reducer of a one-process group.
type single struct{}

func (single) Allreduce(_ context.Context, _ types.ReduceOp, v []float64) ([]float64, error) {
	return append([]float64(nil), v...), nil
}

func (single) AllreduceUint64(_ context.Context, _ types.ReduceOp, v []uint64) ([]uint64, error) {
	return append([]uint64(nil), v...), nil
}

func pt(id uint64, w float64, coords ...float64) types.Point {
	p := types.Point{ID: id, Weight: w}
	copy(p.Coords[:], coords)

	return p
}

func TestAnalyze_Colinear(t *testing.T) {
	points := make([]types.Point, 8)
	for i := range points {
		points[i] = pt(uint64(i), 1, float64(i))
	}

	a, err := Analyze(context.Background(), single{}, points, 1, 0)
	require.NoError(t, err)
	require.False(t, a.Axis.Degenerate)
	require.InDelta(t, 3.5, a.Center[0], 1e-12)
	require.Equal(t, [3]float64{1, 0, 0}, a.Axis.Direction)
	require.Equal(t, 0, a.Axis.Index)
	require.InDelta(t, 42.0, a.Axis.Eigenvalue, 1e-9)
	require.Equal(t, 8.0, a.TotalWeight)
	require.Equal(t, uint64(8), a.Count)
}

func TestAnalyze_Diagonal2D(t *testing.T) {
	points := []types.Point{
		pt(1, 1, 0, 0), pt(2, 1, 1, 1), pt(3, 1, 2, 2), pt(4, 1, 3, 3),
		pt(5, 1, 1.1, 0.9), pt(6, 1, 1.9, 2.1),
	}

	a, err := Analyze(context.Background(), single{}, points, 2, 0)
	require.NoError(t, err)

	var cx, cy float64
	for _, p := range points {
		cx += p.Coords[0] / float64(len(points))
		cy += p.Coords[1] / float64(len(points))
	}
	var xx, xy, yy float64
	for _, p := range points {
		dx, dy := p.Coords[0]-cx, p.Coords[1]-cy
		xx += dx * dx
		xy += dx * dy
		yy += dy * dy
	}
	var ref mat.EigenSym
	require.True(t, ref.Factorize(mat.NewSymDense(2, []float64{xx, xy, xy, yy}), true))
	var vecs mat.Dense
	ref.VectorsTo(&vecs)
	want := [2]float64{vecs.At(0, 1), vecs.At(1, 1)}

	// The points are not symmetric about the diagonal, so the axis leans off 45 degrees.
	require.InDelta(t, 0.6941, math.Abs(want[0]), 1e-3)
	require.InDelta(t, 0.7199, math.Abs(want[1]), 1e-3)

	dot := a.Axis.Direction[0]*want[0] + a.Axis.Direction[1]*want[1]
	require.InDelta(t, 1.0, math.Abs(dot), 1e-9)
	require.Zero(t, a.Axis.Direction[2])
	require.Equal(t, -1, a.Axis.Index)
	require.Less(t, a.Axis.Residual, 1e-10)
}

func TestAnalyze_WeightsShiftCenter(t *testing.T) {
	points := []types.Point{pt(1, 3, 0, 0, 0), pt(2, 1, 4, 0, 0)}

	a, err := Analyze(context.Background(), single{}, points, 3, 0)
	require.NoError(t, err)
	require.InDelta(t, 1.0, a.Center[0], 1e-12)
	require.False(t, a.CountMode)
}

func TestAnalyze_Coincident(t *testing.T) {
	points := make([]types.Point, 10)
	for i := range points {
		points[i] = pt(uint64(i), 1, 5, 5, 5)
	}

	a, err := Analyze(context.Background(), single{}, points, 3, 2)
	require.NoError(t, err)
	require.True(t, a.Axis.Degenerate)
	require.Equal(t, 2, a.Axis.Index)
	require.Equal(t, [3]float64{0, 0, 1}, a.Axis.Direction)
	require.Equal(t, [3]float64{5, 5, 5}, a.Axis.Center)
	require.Zero(t, a.Sweeps)
}

func TestAnalyze_Empty(t *testing.T) {
	a, err := Analyze(context.Background(), single{}, nil, 3, 1)
	require.NoError(t, err)
	require.True(t, a.Axis.Degenerate)
	require.Equal(t, 1, a.Axis.Index)
	require.True(t, a.CountMode)
}

func TestAnalyze_ZeroWeightUsesCounts(t *testing.T) {
	points := []types.Point{pt(1, 0, 0, 0), pt(2, 0, 0, 10), pt(3, 0, 0, 20)}

	a, err := Analyze(context.Background(), single{}, points, 2, 0)
	require.NoError(t, err)
	require.True(t, a.CountMode)
	require.False(t, a.Axis.Degenerate)
	require.InDelta(t, 10.0, a.Center[1], 1e-12)
	require.Equal(t, [3]float64{0, 1, 0}, a.Axis.Direction)
	require.Equal(t, 1, a.Axis.Index)
}

func TestAnalyze_DistributedMatchesSingle(t *testing.T) {
	var all []types.Point
	for i := range 30 {
		x := float64(i)
		all = append(all, pt(uint64(i), 1+float64(i%4), x, 0.5*x+math.Sin(x), math.Cos(x)))
	}

	want, err := Analyze(context.Background(), single{}, all, 3, 0)
	require.NoError(t, err)

	const size = 3
	cluster, err := memory.NewCluster(size)
	require.NoError(t, err)
	defer cluster.Close()

	got := make([]Analysis, size)
	g, ctx := errgroup.WithContext(context.Background())
	for r := range size {
		g.Go(func() error {
			comm, err := collective.New(cluster.Transport(r), 1, "", []int{0, 1, 2}, collective.Options{})
			if err != nil {
				return err
			}
			var local []types.Point
			for i, p := range all {
				if i%size == r {
					local = append(local, p)
				}
			}
			got[r], err = Analyze(ctx, comm, local, 3, 0)

			return err
		})
	}
	require.NoError(t, g.Wait())

	for r := range size {
		require.Equal(t, got[0].Axis, got[r].Axis, "rank %d", r)
		for d := range 3 {
			require.InDelta(t, want.Axis.Direction[d], got[r].Axis.Direction[d], 1e-9)
			require.InDelta(t, want.Center[d], got[r].Center[d], 1e-9)
		}
	}
}

func TestBounds(t *testing.T) {
	points := []types.Point{pt(1, 1, -1, 2, 0), pt(2, 1, 3, -4, 0), pt(3, 1, 0, 0, 7)}

	lo, hi, err := Bounds(context.Background(), single{}, points, 2)
	require.NoError(t, err)
	require.Equal(t, [3]float64{-1, -4, 0}, lo)
	require.Equal(t, [3]float64{3, 2, 0}, hi)

	lo, hi, err = Bounds(context.Background(), single{}, nil, 1)
	require.NoError(t, err)
	require.True(t, math.IsInf(lo[0], 1))
	require.True(t, math.IsInf(hi[0], -1))
}
