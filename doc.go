// Package geoparti provides a distributed geometric load balancer based on
// recursive inertial bisection.
//
// A set of cooperating processes each hold a subset of weighted points in one,
// two or three dimensions. Partitioning redistributes the points so that every
// process ends up with a spatially compact region carrying roughly equal total
// weight. The process set is split recursively into two sub-groups; at every
// level the group agrees on a cut axis, finds the weighted median along it with
// a distributed bisection search, and migrates points across the cut.
//
// # Quick Start
//
// In-process, with one goroutine per rank:
//
//	import "github.com/arloliu/geoparti"
//
//	cfg := geoparti.DefaultConfig()
//	cfg.Dimensions = 2
//
//	results, err := geoparti.RunLocal(ctx, cfg, perRankPoints)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, res := range results {
//	    fmt.Println(res.Rank, len(res.Points), res.Weight())
//	}
//
// Across machines, with one Partitioner per process over NATS:
//
//	tr, err := natsbus.New(ctx, conn, rank, size)
//	p, err := geoparti.NewPartitioner(&cfg, tr)
//	res, err := p.Partition(ctx, localPoints)
//
// # Key Features
//
//   - Inertial axes: the principal axis of the group's inertia tensor, solved with Jacobi rotations
//   - Alternative policies: cyclic coordinate axes or the longest bounding-box extent
//   - Non-power-of-two process counts: the low side of a group of P gets ceil(P/2) processes
//   - Deterministic ties: points with equal projections are ordered by identifier
//   - Zero-weight groups: balanced by point count
//   - Bit-identical collectives: every member of a group observes the same axis and cut
//
// # Failure Semantics
//
// Invalid input anywhere fails the call everywhere with ErrInvalidInput. Transport
// failures surface as ErrCommunication on the failing process and ErrAborted on its
// peers; a partial assignment is never returned. A median search that cannot meet
// the imbalance tolerance is not an error: the best cut found is applied and a
// Warning is attached to the Result.
//
// # Advanced Usage
//
//	import (
//	    "github.com/arloliu/geoparti"
//	    "github.com/arloliu/geoparti/strategy"
//	)
//
//	hooks := &geoparti.Hooks{
//	    OnWarning: func(ctx context.Context, w geoparti.Warning) error {
//	        log.Printf("level %d imbalance %.3f", w.Level, w.Imbalance)
//	        return nil
//	    },
//	}
//
//	p, err := geoparti.NewPartitioner(&cfg, tr,
//	    geoparti.WithAxisStrategy(strategy.NewLongestExtent()),
//	    geoparti.WithHooks(hooks),
//	    geoparti.WithMetrics(geoparti.NewPrometheusMetrics(prometheus.DefaultRegisterer, "geoparti")),
//	)
//
// See the examples/ directory for complete working examples.
package geoparti
