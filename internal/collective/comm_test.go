package collective

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/arloliu/geoparti/transport/memory"
	"github.com/arloliu/geoparti/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runAll runs fn on every rank of a fresh memory cluster with members 0..size-1.
func runAll(t *testing.T, size int, opts Options, fn func(ctx context.Context, c *Comm) error) {
	t.Helper()

	cluster, err := memory.NewCluster(size)
	require.NoError(t, err)
	defer cluster.Close()

	members := make([]int, size)
	for i := range members {
		members[i] = i
	}

	g, ctx := errgroup.WithContext(context.Background())
	for r := range size {
		g.Go(func() error {
			c, err := New(cluster.Transport(r), 1, "root", members, opts)
			if err != nil {
				return err
			}

			return fn(ctx, c)
		})
	}
	require.NoError(t, g.Wait())
}

func TestNew_NotMember(t *testing.T) {
	cluster, err := memory.NewCluster(3)
	require.NoError(t, err)

	_, err = New(cluster.Transport(0), 1, "g", []int{1, 2}, Options{})
	require.ErrorIs(t, err, types.ErrInvalidRank)

	_, err = New(cluster.Transport(0), 1, "g", []int{0, 3}, Options{})
	require.ErrorIs(t, err, types.ErrInvalidRank)

	c, err := New(cluster.Transport(2), 1, "g", []int{1, 2}, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, c.Index())
	require.Equal(t, 2, c.Rank())
	require.Equal(t, []int{1, 2}, c.Members())
}

func TestAllreduce_Operators(t *testing.T) {
	const size = 5
	results := make([][3][]float64, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		x := float64(c.Index())
		sum, err := c.Allreduce(ctx, types.ReduceSum, []float64{x, 1})
		if err != nil {
			return err
		}
		lo, err := c.Allreduce(ctx, types.ReduceMin, []float64{x, -x})
		if err != nil {
			return err
		}
		hi, err := c.Allreduce(ctx, types.ReduceMax, []float64{x, math.Inf(-1)})
		if err != nil {
			return err
		}
		results[c.Index()] = [3][]float64{sum, lo, hi}

		return nil
	})

	for r := range size {
		require.Equal(t, []float64{10, 5}, results[r][0])
		require.Equal(t, []float64{0, -4}, results[r][1])
		require.Equal(t, []float64{4, math.Inf(-1)}, results[r][2])
	}
}

func TestAllreduce_BitIdentical(t *testing.T) {
	const size = 7
	results := make([]uint64, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		// Values whose sum depends on association order.
		v := []float64{0.1 * float64(c.Index()+1), 1e16 / float64(c.Index()+1)}
		out, err := c.Allreduce(ctx, types.ReduceSum, v)
		if err != nil {
			return err
		}
		results[c.Index()] = math.Float64bits(out[0]) ^ math.Float64bits(out[1])

		return nil
	})

	for r := 1; r < size; r++ {
		require.Equal(t, results[0], results[r])
	}
}

func TestAllreduceUint64(t *testing.T) {
	const size = 4
	results := make([][]uint64, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		i := uint64(c.Index())
		out, err := c.AllreduceUint64(ctx, types.ReduceSum, []uint64{i, math.MaxUint64 / 8})
		if err != nil {
			return err
		}
		lo, err := c.AllreduceUint64(ctx, types.ReduceMin, []uint64{i + 3})
		if err != nil {
			return err
		}
		hi, err := c.AllreduceUint64(ctx, types.ReduceMax, []uint64{i + 3})
		if err != nil {
			return err
		}
		results[c.Index()] = append(out, lo[0], hi[0])

		return nil
	})

	for r := range size {
		require.Equal(t, []uint64{6, 4 * (math.MaxUint64 / 8), 3, 6}, results[r])
	}
}

func TestAllreduce_SingleMember(t *testing.T) {
	runAll(t, 1, Options{}, func(ctx context.Context, c *Comm) error {
		out, err := c.Allreduce(ctx, types.ReduceSum, []float64{2.5})
		if err != nil {
			return err
		}
		if out[0] != 2.5 {
			return fmt.Errorf("got %v", out)
		}

		return c.Barrier(ctx)
	})
}

func TestAllreduce_LengthMismatch(t *testing.T) {
	cluster, err := memory.NewCluster(2)
	require.NoError(t, err)
	defer cluster.Close()

	errs := make([]error, 2)
	g := errgroup.Group{}
	for r := range 2 {
		g.Go(func() error {
			c, err := New(cluster.Transport(r), 1, "root", []int{0, 1}, Options{Timeout: 200 * time.Millisecond})
			if err != nil {
				return err
			}
			_, errs[r] = c.Allreduce(context.Background(), types.ReduceSum, make([]float64, r+1))

			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.ErrorIs(t, errs[0], types.ErrCommunication)
	require.ErrorIs(t, errs[1], types.ErrCommunication)
}

func TestBarrier(t *testing.T) {
	const size = 4
	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		for range 3 {
			if err := c.Barrier(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}

func TestExchange(t *testing.T) {
	const size = 4
	got := make([]map[int][]byte, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		// Each rank sends to the next rank and to itself.
		me := c.Rank()
		next := (me + 1) % size
		prev := (me + size - 1) % size
		out := map[int][]byte{
			next: []byte(fmt.Sprintf("%d->%d", me, next)),
			me:   []byte("self"),
		}
		in, err := c.Exchange(ctx, out, []int{prev})
		if err != nil {
			return err
		}
		got[me] = in

		return nil
	})

	for r := range size {
		prev := (r + size - 1) % size
		require.Equal(t, fmt.Sprintf("%d->%d", prev, r), string(got[r][prev]))
		require.Equal(t, "self", string(got[r][r]))
	}
}

func TestTranspose(t *testing.T) {
	const size = 4
	results := make([]map[int]uint64, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		r := c.Rank()
		counts := map[int]uint64{r: 0}
		counts[(r+1)%size] += uint64(r + 1)
		if r != 0 {
			counts[0] += 7
		}
		in, err := c.Transpose(ctx, counts)
		if err != nil {
			return err
		}
		results[r] = in

		return nil
	})

	require.Equal(t, map[int]uint64{1: 7, 2: 7, 3: 11}, results[0])
	require.Equal(t, map[int]uint64{0: 1}, results[1])
	require.Equal(t, map[int]uint64{1: 2}, results[2])
	require.Equal(t, map[int]uint64{2: 3}, results[3])
}

func TestTranspose_SingleMember(t *testing.T) {
	runAll(t, 1, Options{}, func(ctx context.Context, c *Comm) error {
		in, err := c.Transpose(ctx, map[int]uint64{0: 5})
		if err != nil {
			return err
		}
		if len(in) != 1 || in[0] != 5 {
			return fmt.Errorf("got %v", in)
		}

		empty, err := c.Transpose(ctx, nil)
		if err != nil {
			return err
		}
		if len(empty) != 0 {
			return fmt.Errorf("got %v", empty)
		}

		return nil
	})
}

func TestTranspose_DestinationOutsideGroup(t *testing.T) {
	cluster, err := memory.NewCluster(3)
	require.NoError(t, err)
	defer cluster.Close()

	errs := make([]error, 2)
	g := errgroup.Group{}
	for i, r := range []int{1, 2} {
		g.Go(func() error {
			c, err := New(cluster.Transport(r), 1, "left", []int{1, 2}, Options{Timeout: 200 * time.Millisecond})
			if err != nil {
				return err
			}
			_, errs[i] = c.Transpose(context.Background(), map[int]uint64{0: 1})

			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.ErrorIs(t, errs[0], types.ErrCommunication)
	require.ErrorIs(t, errs[1], types.ErrCommunication)
}

func TestSub_IndependentSequences(t *testing.T) {
	const size = 4
	results := make([]float64, size)

	runAll(t, size, Options{}, func(ctx context.Context, c *Comm) error {
		members := []int{0, 1}
		path := "root0"
		if c.Rank() >= 2 {
			members = []int{2, 3}
			path = "root1"
		}
		sub, err := c.Sub(path, members)
		if err != nil {
			return err
		}
		out, err := sub.Allreduce(ctx, types.ReduceSum, []float64{float64(c.Rank())})
		if err != nil {
			return err
		}
		results[c.Rank()] = out[0]

		return c.Barrier(ctx)
	})

	require.Equal(t, []float64{1, 1, 5, 5}, results)
}

func TestReceiveTimeout(t *testing.T) {
	cluster, err := memory.NewCluster(2)
	require.NoError(t, err)
	defer cluster.Close()

	// Rank 1 never participates.
	c, err := New(cluster.Transport(0), 1, "root", []int{0, 1}, Options{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Allreduce(context.Background(), types.ReduceSum, []float64{1})
	require.ErrorIs(t, err, types.ErrCommunication)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAbort(t *testing.T) {
	cluster, err := memory.NewCluster(3)
	require.NoError(t, err)
	defer cluster.Close()

	members := []int{0, 1, 2}
	errs := make([]error, 3)
	g := errgroup.Group{}
	for r := range 3 {
		g.Go(func() error {
			c, err := New(cluster.Transport(r), 9, "root", members, Options{Timeout: 5 * time.Second})
			if err != nil {
				return err
			}
			if r == 2 {
				return c.Abort(context.Background(), "invalid input")
			}
			_, errs[r] = c.Allreduce(context.Background(), types.ReduceSum, []float64{1})

			return nil
		})
	}
	require.NoError(t, g.Wait())

	for r := range 2 {
		require.ErrorIs(t, errs[r], types.ErrAborted, "rank %d", r)
		require.NotErrorIs(t, errs[r], types.ErrCommunication)
	}
}
