package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/arloliu/geoparti/types"
	"github.com/stretchr/testify/require"
)

// single is the identity reducer of a one-process group.
type single struct{}

func (single) Allreduce(_ context.Context, _ types.ReduceOp, v []float64) ([]float64, error) {
	return append([]float64(nil), v...), nil
}

func (single) AllreduceUint64(_ context.Context, _ types.ReduceOp, v []uint64) ([]uint64, error) {
	return append([]uint64(nil), v...), nil
}

func box(w, h float64) []types.Point {
	return []types.Point{
		{ID: 1, Coords: [3]float64{0, 0}, Weight: 1},
		{ID: 2, Coords: [3]float64{w, 0}, Weight: 1},
		{ID: 3, Coords: [3]float64{0, h}, Weight: 1},
		{ID: 4, Coords: [3]float64{w, h}, Weight: 1},
	}
}

func TestInertial_SelectAxis(t *testing.T) {
	t.Run("follows the long side", func(t *testing.T) {
		axis, err := NewInertial().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: box(1, 10), Dimensions: 2,
		})

		require.NoError(t, err)
		require.Equal(t, [3]float64{0, 1, 0}, axis.Direction)
		require.Equal(t, 1, axis.Index)
		require.InDelta(t, 5.0, axis.Center[1], 1e-12)
	})

	t.Run("finds a rotated axis", func(t *testing.T) {
		points := make([]types.Point, 20)
		for i := range points {
			s := float64(i)
			points[i] = types.Point{ID: uint64(i), Coords: [3]float64{s, s, s}, Weight: 1}
		}

		axis, err := NewInertial().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: points, Dimensions: 3,
		})

		require.NoError(t, err)
		for d := range 3 {
			require.InDelta(t, 1/math.Sqrt(3), axis.Direction[d], 1e-9)
		}
	})

	t.Run("falls back on coincident points", func(t *testing.T) {
		axis, err := NewInertial().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: box(0, 0), Dimensions: 3, FallbackAxis: 1,
		})

		require.NoError(t, err)
		require.True(t, axis.Degenerate)
		require.Equal(t, 1, axis.Index)
	})

	t.Run("rejects bad dimensions", func(t *testing.T) {
		_, err := NewInertial().SelectAxis(context.Background(), single{}, types.AxisRequest{Dimensions: 4})
		require.ErrorIs(t, err, ErrInvalidDimensions)
	})
}

func TestCoordinateCycle_SelectAxis(t *testing.T) {
	s := NewCoordinateCycle()

	for level, want := range []int{0, 1, 2, 0, 1} {
		axis, err := s.SelectAxis(context.Background(), nil, types.AxisRequest{Dimensions: 3, Level: level})
		require.NoError(t, err)
		require.Equal(t, want, axis.Index, "level %d", level)
		require.Equal(t, 1.0, axis.Direction[want])
	}

	axis, err := s.SelectAxis(context.Background(), nil, types.AxisRequest{Dimensions: 2, Level: 3})
	require.NoError(t, err)
	require.Equal(t, 1, axis.Index)

	_, err = s.SelectAxis(context.Background(), nil, types.AxisRequest{Dimensions: 0})
	require.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestLongestExtent_SelectAxis(t *testing.T) {
	t.Run("picks widest coordinate", func(t *testing.T) {
		axis, err := NewLongestExtent().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: box(3, 8), Dimensions: 2,
		})

		require.NoError(t, err)
		require.Equal(t, 1, axis.Index)
		require.Equal(t, [3]float64{1.5, 4, 0}, axis.Center)
	})

	t.Run("ties go to lowest index", func(t *testing.T) {
		axis, err := NewLongestExtent().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: box(5, 5), Dimensions: 2,
		})

		require.NoError(t, err)
		require.Equal(t, 0, axis.Index)
	})

	t.Run("falls back without extent", func(t *testing.T) {
		axis, err := NewLongestExtent().SelectAxis(context.Background(), single{}, types.AxisRequest{
			Points: nil, Dimensions: 3, FallbackAxis: 2,
		})

		require.NoError(t, err)
		require.True(t, axis.Degenerate)
		require.Equal(t, 2, axis.Index)
	})
}

func TestForPolicy(t *testing.T) {
	for _, name := range Policies() {
		s, err := ForPolicy(name)
		require.NoError(t, err, name)
		require.NotNil(t, s)
	}

	s, err := ForPolicy(PolicyCoordinateCycle)
	require.NoError(t, err)
	require.IsType(t, &CoordinateCycle{}, s)

	_, err = ForPolicy("spectral")
	require.ErrorIs(t, err, types.ErrUnknownAxisPolicy)
}
