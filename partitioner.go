package geoparti

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/geoparti/internal/codec"
	"github.com/arloliu/geoparti/internal/collective"
	"github.com/arloliu/geoparti/internal/group"
	"github.com/arloliu/geoparti/internal/hash"
	"github.com/arloliu/geoparti/internal/hooks"
	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/internal/median"
	"github.com/arloliu/geoparti/internal/metrics"
	"github.com/arloliu/geoparti/strategy"
	"github.com/arloliu/geoparti/types"
)

// originPath names the group used for the final return-to-origin exchange.
// Bisection paths only contain '0' and '1', so it never collides with them.
const originPath = "origin"

// runReleaser is implemented by transports that buffer per-run state.
type runReleaser interface {
	Release(run uint64)
}

// Partitioner is one process's endpoint of a recursive bisection partitioner.
//
// Every rank of the Transport owns a Partitioner and calls Partition the same
// number of times, in the same order, with its own local points. Each call
// recursively splits the active process group and its points in two along an
// axis chosen by the AxisStrategy, at a cut found by a distributed median
// search, until every process forms its own group. Points migrate between the
// halves at every level.
//
// Thread Safety:
//   - Partition and PartitionSource are serialized per Partitioner
//   - Distinct Partitioners (one per rank) run concurrently
//
// Failure:
//   - Invalid input on any process fails the call on every process with ErrInvalidInput
//   - A failed collective aborts the run; peers fail with ErrAborted instead of waiting for timeouts
//   - Missed balance tolerances are reported as Warnings on a successful Result
type Partitioner struct {
	cfg     Config
	tr      Transport
	axis    AxisStrategy
	hooks   Hooks
	metrics MetricsCollector
	logger  Logger
	digest  string

	runs atomic.Uint64
	mu   sync.Mutex
}

// NewPartitioner creates a new Partitioner for the calling process.
//
// Returns a concrete *Partitioner struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults in place
//   - tr: Transport connecting this process with its peers
//   - opts: Optional configuration (axis strategy, hooks, metrics, logger)
//
// Returns:
//   - *Partitioner: Initialized partitioner
//   - error: ErrInvalidConfig, ErrTransportRequired, or ErrInvalidInput for an empty process set
//
// Example:
//
//	cfg := geoparti.DefaultConfig()
//	cfg.Dimensions = 2
//	p, err := geoparti.NewPartitioner(&cfg, tr)
//	if err != nil { /* handle */ }
//	res, err := p.Partition(ctx, localPoints)
func NewPartitioner(cfg *Config, tr Transport, opts ...Option) (*Partitioner, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if tr == nil {
		return nil, ErrTransportRequired
	}
	if tr.Size() <= 0 {
		return nil, fmt.Errorf("%w: process count must be positive, got %d", ErrInvalidInput, tr.Size())
	}
	if tr.Rank() < 0 || tr.Rank() >= tr.Size() {
		return nil, fmt.Errorf("%w: rank %d outside [0, %d)", ErrInvalidInput, tr.Rank(), tr.Size())
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &partitionerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := logging.With(options.logger, "rank", tr.Rank())

	cfg.ValidateWithWarnings(loggerInstance)

	axis := options.axis
	axisName := fmt.Sprintf("%T", axis)
	if axis == nil {
		var err error
		axis, err = strategy.ForPolicy(cfg.AxisPolicy)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		axisName = cfg.AxisPolicy
	}

	return &Partitioner{
		cfg:     *cfg,
		tr:      tr,
		axis:    axis,
		hooks:   hooks.Fill(options.hooks),
		metrics: metricsCollector,
		logger:  loggerInstance,
		digest: fmt.Sprintf("tol=%v iter=%d axis=%s degenerate=%d",
			cfg.ImbalanceTolerance, cfg.MaxIterations, axisName, cfg.DegenerateAxis),
	}, nil
}

// Rank returns the rank of the calling process.
func (p *Partitioner) Rank() int {
	return p.tr.Rank()
}

// Size returns the number of processes.
func (p *Partitioner) Size() int {
	return p.tr.Size()
}

// Partition balances the given local points across all processes.
//
// This is a collective call: it returns on this process once this process's
// branch of the recursion reached its terminal group and the final
// return-to-origin exchange completed.
//
// Parameters:
//   - ctx: Context for cancellation; cancelling aborts the run on every process
//   - points: Process-local points (IDs must be globally unique)
//
// Returns:
//   - *Result: Points held after partitioning, export list, per-level reports and warnings
//   - error: ErrInvalidInput, ErrCommunication, ErrAborted or a context error; never a partial result
func (p *Partitioner) Partition(ctx context.Context, points []Point) (*Result, error) {
	return p.run(ctx, points, p.cfg.Dimensions, nil)
}

// PartitionSource is Partition with points read from src.
//
// A source failure or a source dimensionality different from the
// configuration fails the call on every process with ErrInvalidInput.
func (p *Partitioner) PartitionSource(ctx context.Context, src PointSource) (*Result, error) {
	if src == nil {
		return p.run(ctx, nil, p.cfg.Dimensions, errors.New("point source is nil"))
	}

	points, err := src.ListPoints(ctx)
	if err == nil && src.Dimensions() != p.cfg.Dimensions {
		err = fmt.Errorf("source has %d dimensions, configuration has %d", src.Dimensions(), p.cfg.Dimensions)
	}

	return p.run(ctx, points, p.cfg.Dimensions, err)
}

func (p *Partitioner) run(ctx context.Context, points []Point, dims int, srcErr error) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	run := p.runs.Add(1)
	if r, ok := p.tr.(runReleaser); ok {
		defer r.Release(run)
	}

	log := logging.With(p.logger, "run", run)
	res, err := p.partition(ctx, log, run, points, dims, srcErr)
	elapsed := time.Since(start)
	p.metrics.RecordPartition(elapsed.Seconds(), err == nil)
	if err != nil {
		log.Error("partitioning failed", "error", err)
		return nil, err
	}

	log.Info("partitioning complete",
		"points", len(res.Points),
		"imports", len(res.Imports()),
		"exports", len(res.Exports),
		"levels", len(res.Levels),
		"warnings", len(res.Warnings),
		"duration", elapsed,
	)

	return res, nil
}

func (p *Partitioner) partition(ctx context.Context, log Logger, run uint64, points []Point, dims int, srcErr error) (*Result, error) {
	rank, size := p.tr.Rank(), p.tr.Size()
	arena := group.NewArena(size)
	span := arena.Root()

	comm, err := collective.New(p.tr, run, span.Path, arena.Members(span), collective.Options{Timeout: p.timeout()})
	if err != nil {
		return nil, err
	}
	root := comm

	held, problem := p.prepare(points, dims, srcErr)
	if err := p.validate(ctx, comm, dims, problem); err != nil {
		return nil, p.fail(ctx, log, comm, err)
	}

	var (
		levels   []LevelReport
		warnings []Warning
	)
	for !span.Terminal() {
		low, high, err := arena.Split(span)
		if err != nil {
			return nil, p.fail(ctx, log, comm, err)
		}

		report, moved, err := p.bisect(ctx, log, comm, dims, span, group.Sides{
			Low:  arena.Members(low),
			High: arena.Members(high),
		}, held)
		if err != nil {
			return nil, p.fail(ctx, log, comm, fmt.Errorf("level %d group %q: %w", span.Level, comm.Path(), err))
		}
		held = moved
		levels = append(levels, report)

		if !report.Cut.Achieved {
			w := Warning{
				Kind:       WarningToleranceNotAchieved,
				Level:      report.Level,
				Path:       report.Path,
				Imbalance:  report.Cut.Imbalance(),
				Tolerance:  p.cfg.ImbalanceTolerance,
				Iterations: report.Cut.Iterations,
			}
			warnings = append(warnings, w)
			p.metrics.RecordWarning(w.Kind)
			log.Warn("imbalance tolerance not achieved",
				"level", w.Level,
				"path", w.Path,
				"imbalance", w.Imbalance,
				"tolerance", w.Tolerance,
				"iterations", w.Iterations,
			)
			if err := p.hooks.OnWarning(ctx, w); err != nil {
				log.Warn("OnWarning hook failed", "error", err)
			}
		}
		if err := p.hooks.OnLevelComplete(ctx, report); err != nil {
			log.Warn("OnLevelComplete hook failed", "level", report.Level, "error", err)
		}

		next, ok := arena.Child(span, rank)
		if !ok {
			return nil, p.fail(ctx, log, comm, fmt.Errorf("rank %d missing from both halves of group %q", rank, comm.Path()))
		}
		comm, err = comm.Sub(next.Path, arena.Members(next))
		if err != nil {
			return nil, p.fail(ctx, log, comm, err)
		}
		span = next
	}

	for i := range held {
		held[i].Owner = rank
	}

	origin, err := root.Sub(originPath, arena.Members(arena.Root()))
	if err != nil {
		return nil, p.fail(ctx, log, root, err)
	}
	exports, err := p.returnToOrigin(ctx, origin, held)
	if err != nil {
		return nil, p.fail(ctx, log, origin, err)
	}

	return &Result{
		Rank:     rank,
		Size:     size,
		Points:   held,
		Exports:  exports,
		Levels:   levels,
		Warnings: warnings,
	}, nil
}

// bisect runs one recursion level: axis selection, median search and migration.
func (p *Partitioner) bisect(
	ctx context.Context,
	log Logger,
	comm *collective.Comm,
	dims int,
	span group.Span,
	sides group.Sides,
	held []Point,
) (LevelReport, []Point, error) {
	axis, err := p.axis.SelectAxis(ctx, comm, types.AxisRequest{
		Points:       held,
		Dimensions:   dims,
		Level:        span.Level,
		FallbackAxis: p.cfg.DegenerateAxis,
	})
	if err != nil {
		return LevelReport{}, nil, fmt.Errorf("axis selection: %w", err)
	}

	found, err := median.Find(ctx, comm, median.Request{
		Axis:          axis,
		Points:        held,
		Fraction:      float64(len(sides.Low)) / float64(span.Size()),
		Tolerance:     p.cfg.ImbalanceTolerance,
		MaxIterations: p.cfg.MaxIterations,
	})
	if err != nil {
		return LevelReport{}, nil, err
	}
	cut := found.Cut

	moved, stats, err := group.Migrate(ctx, comm, sides, held, cut.IsLow, p.cfg.CompressionThreshold)
	if err != nil {
		return LevelReport{}, nil, err
	}

	p.metrics.RecordLevel(span.Level, cut.Imbalance(), axis.Degenerate)
	p.metrics.RecordMedianSearch(cut.Iterations, cut.Achieved)
	p.metrics.RecordMigration(stats.Sent, stats.Received, stats.Bytes)
	log.Debug("bisection level complete",
		"level", span.Level,
		"path", comm.Path(),
		"groupSize", span.Size(),
		"lowProcs", len(sides.Low),
		"axis", axis.Direction,
		"degenerate", axis.Degenerate,
		"cut", cut.Lower,
		"tieSearch", found.TieSearch,
		"lowMeasure", cut.LowMeasure,
		"totalMeasure", cut.TotalMeasure,
		"iterations", cut.Iterations,
		"sent", stats.Sent,
		"received", stats.Received,
	)

	return LevelReport{
		Level:     span.Level,
		Path:      span.Path,
		GroupSize: span.Size(),
		LowProcs:  len(sides.Low),
		HighProcs: len(sides.High),
		Cut:       cut,
		Sent:      stats.Sent,
		Received:  stats.Received,
	}, moved, nil
}

// prepare copies the caller's points, stamping ownership, and reports the first local input problem.
func (p *Partitioner) prepare(points []Point, dims int, srcErr error) ([]Point, string) {
	if srcErr != nil {
		return nil, "point source: " + srcErr.Error()
	}
	if dims < 1 || dims > MaxDimensions {
		return nil, fmt.Sprintf("dimensions must be between 1 and %d, got %d", MaxDimensions, dims)
	}

	rank := p.tr.Rank()
	held := make([]Point, len(points))
	for i, pt := range points {
		if math.IsNaN(pt.Weight) || math.IsInf(pt.Weight, 0) || pt.Weight < 0 {
			return nil, fmt.Sprintf("point %d has invalid weight %v", pt.ID, pt.Weight)
		}
		for d := range dims {
			if math.IsNaN(pt.Coords[d]) || math.IsInf(pt.Coords[d], 0) {
				return nil, fmt.Sprintf("point %d has non-finite coordinate %d", pt.ID, d)
			}
		}
		for d := dims; d < MaxDimensions; d++ {
			pt.Coords[d] = 0
		}
		pt.Owner = rank
		pt.Origin = rank
		held[i] = pt
	}

	return held, ""
}

// validate agrees on input validity and configuration across the whole process set.
func (p *Partitioner) validate(ctx context.Context, comm *collective.Comm, dims int, problem string) error {
	digest := hash.String(fmt.Sprintf("dims=%d %s", dims, p.digest))

	var bad uint64
	if problem != "" {
		bad = 1
	}

	flags, err := comm.AllreduceUint64(ctx, types.ReduceMax, []uint64{bad, digest, math.MaxUint64 - digest})
	if err != nil {
		return fmt.Errorf("input validation: %w", err)
	}

	switch {
	case problem != "":
		return fmt.Errorf("%w: %s", ErrInvalidInput, problem)
	case flags[0] != 0:
		return fmt.Errorf("%w: another process supplied invalid points", ErrInvalidInput)
	case flags[1] != math.MaxUint64-flags[2]:
		return fmt.Errorf("%w: dimensionality or configuration differs between processes", ErrInvalidInput)
	}

	return nil
}

// returnToOrigin tells every supplier where its points ended up.
//
// Decoding failures are agreed on by the whole process set before returning,
// so a corrupt export batch fails the call everywhere rather than on the
// receiving process only.
func (p *Partitioner) returnToOrigin(ctx context.Context, comm *collective.Comm, held []Point) ([]Export, error) {
	rank := p.tr.Rank()

	batches := make(map[int][]Export)
	for _, pt := range held {
		if pt.Origin != rank {
			batches[pt.Origin] = append(batches[pt.Origin], Export{ID: pt.ID, To: rank})
		}
	}

	sending := make(map[int]uint64, len(batches))
	for origin, batch := range batches {
		sending[origin] = uint64(len(batch))
	}
	incoming, err := comm.Transpose(ctx, sending)
	if err != nil {
		return nil, fmt.Errorf("export counts: %w", err)
	}

	outgoing := make(map[int][]byte, len(batches))
	for origin, batch := range batches {
		payload, err := codec.EncodeExports(batch, p.cfg.CompressionThreshold)
		if err != nil {
			return nil, err
		}
		outgoing[origin] = payload
	}

	expect := make([]int, 0, len(incoming))
	for _, r := range comm.Members() {
		if incoming[r] > 0 {
			expect = append(expect, r)
		}
	}

	received, err := comm.Exchange(ctx, outgoing, expect)
	if err != nil {
		return nil, fmt.Errorf("export exchange: %w", err)
	}

	exports, bad := decodeExports(received, expect, incoming)

	var failed uint64
	if bad != nil {
		failed = 1
	}
	status, err := comm.AllreduceUint64(ctx, types.ReduceMax, []uint64{failed})
	switch {
	case err != nil && bad != nil:
		return nil, bad
	case err != nil:
		return nil, fmt.Errorf("export status: %w", err)
	case bad != nil:
		return nil, settledError{bad}
	case status[0] != 0:
		return nil, settledError{fmt.Errorf("%w: another process received corrupt export records", ErrCommunication)}
	}

	return exports, nil
}

// decodeExports decodes the export batches of every expected sender, sorted by point ID.
func decodeExports(received map[int][]byte, expect []int, counts map[int]uint64) ([]Export, error) {
	exports := make([]Export, 0)
	for _, from := range expect {
		batch, err := codec.DecodeExports(received[from])
		if err != nil {
			return nil, fmt.Errorf("%w: export payload from rank %d: %w", ErrCommunication, from, err)
		}
		if want := counts[from]; uint64(len(batch)) != want {
			return nil, fmt.Errorf("%w: rank %d sent %d export records, expected %d",
				ErrCommunication, from, len(batch), want)
		}
		exports = append(exports, batch...)
	}
	slices.SortFunc(exports, func(a, b Export) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return exports, nil
}

// settledError marks a failure every process has already observed.
type settledError struct{ error }

func (e settledError) Unwrap() error { return e.error }

// fail aborts the run on every peer unless the failure is already uniform.
func (p *Partitioner) fail(ctx context.Context, log Logger, comm *collective.Comm, err error) error {
	var settled settledError
	if errors.As(err, &settled) {
		return settled.error
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrAborted) {
		return err
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if abortErr := comm.Abort(actx, err.Error()); abortErr != nil {
		log.Warn("failed to notify peers of abort", "group", comm.Path(), "error", abortErr)
	}

	return err
}

func (p *Partitioner) timeout() time.Duration {
	if p.cfg.ExchangeTimeout < 0 {
		return 0
	}

	return p.cfg.ExchangeTimeout
}
