package geoparti

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/arloliu/geoparti/transport/memory"
	"golang.org/x/sync/errgroup"
)

// RunLocal partitions inputs across len(inputs) in-process goroutines.
//
// Each inputs[i] is the local point set of rank i. The ranks are connected by an
// in-memory transport and run concurrently. This is the simplest way to use the
// partitioner inside one binary and the reference harness for tests.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cfg: Configuration shared by every rank
//   - inputs: Local points per rank; must not be empty
//   - opts: Options applied to every rank's Partitioner
//
// Returns:
//   - []*Result: Results indexed by rank
//   - error: The root cause of the first failure; ranks that merely observed the
//     abort do not mask it
//
// Example:
//
//	cfg := geoparti.DefaultConfig()
//	cfg.Dimensions = 2
//	results, err := geoparti.RunLocal(ctx, cfg, [][]geoparti.Point{pointsA, pointsB})
func RunLocal(ctx context.Context, cfg Config, inputs [][]Point, opts ...Option) ([]*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: process count must be positive", ErrInvalidInput)
	}

	cluster, err := memory.NewCluster(len(inputs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cluster.Close() }()

	parts := make([]*Partitioner, len(inputs))
	for rank := range inputs {
		rankCfg := cfg
		parts[rank], err = NewPartitioner(&rankCfg, cluster.Transport(rank), opts...)
		if err != nil {
			return nil, err
		}
	}

	var (
		mu       sync.Mutex
		rootErr  error
		abortErr error
	)
	results := make([]*Result, len(inputs))

	var g errgroup.Group
	for rank := range inputs {
		g.Go(func() error {
			res, err := parts[rank].Partition(ctx, inputs[rank])
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				if errors.Is(err, ErrAborted) {
					if abortErr == nil {
						abortErr = err
					}
				} else if rootErr == nil {
					rootErr = err
				}

				return err
			}
			results[rank] = res

			return nil
		})
	}
	_ = g.Wait()

	switch {
	case rootErr != nil:
		return nil, rootErr
	case abortErr != nil:
		return nil, abortErr
	}

	return results, nil
}
