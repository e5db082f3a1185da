// Package collective layers group collectives on top of a point-to-point Transport.
//
// A Comm binds a run and a group (an ordered list of world ranks identified by
// its recursion path). Reductions gather to the first member, combine the
// contributions in member order and broadcast the result, so every member
// observes bit-identical values. Each collective consumes one sequence number;
// members must issue the same collectives in the same order.
package collective

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/arloliu/geoparti/internal/codec"
	"github.com/arloliu/geoparti/types"
)

// Options configures a Comm.
type Options struct {
	// Timeout bounds each individual receive. Zero waits for the parent context only.
	Timeout time.Duration
}

// Comm is one process's handle on a group.
//
// A Comm is used by a single goroutine; it is not safe for concurrent use.
type Comm struct {
	tr      types.Transport
	run     uint64
	path    string
	members []int
	self    int
	seq     int
	opts    Options
}

// Compile-time assertion that Comm implements Reducer.
var _ types.Reducer = (*Comm)(nil)

// New creates a group handle.
//
// Parameters:
//   - tr: Transport connecting all world ranks
//   - run: Run identifier shared by all members
//   - path: Group identifier, unique within the run
//   - members: World ranks of the group in a member-agreed order
//   - opts: Receive timeout
//
// Returns:
//   - *Comm: Group handle
//   - error: ErrInvalidRank if tr.Rank() is not a member or a member is out of range
func New(tr types.Transport, run uint64, path string, members []int, opts Options) (*Comm, error) {
	self := -1
	for i, r := range members {
		if r < 0 || r >= tr.Size() {
			return nil, fmt.Errorf("member %d outside world of %d: %w", r, tr.Size(), types.ErrInvalidRank)
		}
		if r == tr.Rank() {
			self = i
		}
	}
	if self < 0 {
		return nil, fmt.Errorf("rank %d is not a member of group %q: %w", tr.Rank(), path, types.ErrInvalidRank)
	}

	return &Comm{
		tr:      tr,
		run:     run,
		path:    path,
		members: slices.Clone(members),
		self:    self,
		opts:    opts,
	}, nil
}

// Sub creates a handle for a sub-group of the same run.
func (c *Comm) Sub(path string, members []int) (*Comm, error) {
	return New(c.tr, c.run, path, members, c.opts)
}

// Path returns the group path.
func (c *Comm) Path() string { return c.path }

// Size returns the number of members.
func (c *Comm) Size() int { return len(c.members) }

// Index returns this process's position within the group.
func (c *Comm) Index() int { return c.self }

// Members returns a copy of the member world ranks.
func (c *Comm) Members() []int { return slices.Clone(c.members) }

// Rank returns this process's world rank.
func (c *Comm) Rank() int { return c.members[c.self] }

// Allreduce reduces a float64 vector across the group.
//
// Contributions are combined in member order, making the floating-point result
// independent of message arrival order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - op: Elementwise operator
//   - values: Local contribution; all members must pass the same length
//
// Returns:
//   - []float64: Reduced vector, identical on every member
//   - error: ErrCommunication, ErrAborted or a context error
func (c *Comm) Allreduce(ctx context.Context, op types.ReduceOp, values []float64) ([]float64, error) {
	out, err := c.reduce(ctx, "allreduce", codec.EncodeFloats(values), func(acc, in []byte) ([]byte, error) {
		a, err := codec.DecodeFloats(acc)
		if err != nil {
			return nil, err
		}
		b, err := codec.DecodeFloats(in)
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("vector length %d, want %d", len(b), len(a))
		}
		for i := range a {
			a[i] = combineFloat(op, a[i], b[i])
		}

		return codec.EncodeFloats(a), nil
	})
	if err != nil {
		return nil, err
	}

	result, err := codec.DecodeFloats(out)
	if err != nil {
		return nil, fmt.Errorf("%w: group %q: %w", types.ErrCommunication, c.path, err)
	}

	return result, nil
}

// AllreduceUint64 reduces a uint64 vector across the group exactly.
func (c *Comm) AllreduceUint64(ctx context.Context, op types.ReduceOp, values []uint64) ([]uint64, error) {
	out, err := c.reduce(ctx, "allreduce-u64", codec.EncodeUints(values), func(acc, in []byte) ([]byte, error) {
		a, err := codec.DecodeUints(acc)
		if err != nil {
			return nil, err
		}
		b, err := codec.DecodeUints(in)
		if err != nil {
			return nil, err
		}
		if len(a) != len(b) {
			return nil, fmt.Errorf("vector length %d, want %d", len(b), len(a))
		}
		for i := range a {
			a[i] = combineUint(op, a[i], b[i])
		}

		return codec.EncodeUints(a), nil
	})
	if err != nil {
		return nil, err
	}

	result, err := codec.DecodeUints(out)
	if err != nil {
		return nil, fmt.Errorf("%w: group %q: %w", types.ErrCommunication, c.path, err)
	}

	return result, nil
}

// Barrier returns once every member has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	_, err := c.reduce(ctx, "barrier", nil, func(acc, _ []byte) ([]byte, error) { return acc, nil })

	return err
}

// Exchange performs a sparse all-to-all within the group.
//
// Every member sends the payloads in outgoing (keyed by destination world rank)
// and then receives exactly one payload from each rank in expect. A payload
// addressed to this process is looped back without touching the transport.
//
// Parameters:
//   - ctx: Context for cancellation
//   - outgoing: Payload per destination world rank
//   - expect: World ranks this process will receive from
//
// Returns:
//   - map[int][]byte: Received payload per source world rank
//   - error: ErrCommunication, ErrAborted or a context error
func (c *Comm) Exchange(ctx context.Context, outgoing map[int][]byte, expect []int) (map[int][]byte, error) {
	tag := c.nextTag("exchange")
	self := c.Rank()

	dests := make([]int, 0, len(outgoing))
	for to := range outgoing {
		dests = append(dests, to)
	}
	slices.Sort(dests)

	received := make(map[int][]byte, len(expect))
	for _, to := range dests {
		if to == self {
			received[self] = outgoing[to]
			continue
		}
		if err := c.send(ctx, to, tag, outgoing[to]); err != nil {
			return nil, err
		}
	}

	for _, from := range expect {
		if from == self {
			continue
		}
		payload, err := c.receive(ctx, from, tag)
		if err != nil {
			return nil, err
		}
		received[from] = payload
	}

	return received, nil
}

// Transpose delivers sparse per-destination counts to their destinations.
//
// Each member passes how many items it will send to each destination (world
// rank within the group) and gets back how many items each source will send
// to it. Contributions gather at the first member, which routes every non-zero
// entry to its destination, so the bytes moved grow with the number of
// communicating pairs rather than with the square of the group size.
//
// Parameters:
//   - ctx: Context for cancellation
//   - counts: Item count per destination world rank; zero entries are ignored
//
// Returns:
//   - map[int]uint64: Item count per source world rank addressed to this member
//   - error: ErrCommunication for a destination outside the group, ErrAborted or a context error
func (c *Comm) Transpose(ctx context.Context, counts map[int]uint64) (map[int]uint64, error) {
	tag := c.nextTag("transpose")
	local := encodePairs(counts)

	if len(c.members) == 1 {
		routed, err := c.route(map[int][]byte{c.Rank(): local})
		if err != nil {
			return nil, err
		}

		return pairsToCounts(routed[c.Rank()]), nil
	}

	if c.self != 0 {
		if err := c.send(ctx, c.members[0], tag, local); err != nil {
			return nil, err
		}
		out, err := c.receive(ctx, c.members[0], tag+"/result")
		if err != nil {
			return nil, err
		}

		return decodePairs(out)
	}

	contributions := map[int][]byte{c.Rank(): local}
	for _, from := range c.members[1:] {
		in, err := c.receive(ctx, from, tag)
		if err != nil {
			return nil, err
		}
		contributions[from] = in
	}

	routed, err := c.route(contributions)
	if err != nil {
		return nil, err
	}
	for _, to := range c.members[1:] {
		if err := c.send(ctx, to, tag+"/result", codec.EncodeUints(routed[to])); err != nil {
			return nil, err
		}
	}

	return pairsToCounts(routed[c.Rank()]), nil
}

// route regroups (destination, count) contributions into (source, count) lists per destination.
// Sources are visited in member order, so every list is sorted by member position.
func (c *Comm) route(contributions map[int][]byte) (map[int][]uint64, error) {
	inGroup := make(map[int]bool, len(c.members))
	for _, r := range c.members {
		inGroup[r] = true
	}

	routed := make(map[int][]uint64)
	for _, from := range c.members {
		payload, ok := contributions[from]
		if !ok {
			continue
		}
		pairs, err := codec.DecodeUints(payload)
		if err != nil || len(pairs)%2 != 0 {
			return nil, fmt.Errorf("%w: group %q transpose from rank %d: malformed counts", types.ErrCommunication, c.path, from)
		}
		for i := 0; i < len(pairs); i += 2 {
			to := int(pairs[i])
			if !inGroup[to] {
				return nil, fmt.Errorf("%w: group %q transpose from rank %d: destination %d outside group",
					types.ErrCommunication, c.path, from, to)
			}
			routed[to] = append(routed[to], uint64(from), pairs[i+1])
		}
	}

	return routed, nil
}

// encodePairs flattens non-zero counts into [key, count, ...] sorted by key.
func encodePairs(counts map[int]uint64) []byte {
	keys := make([]int, 0, len(counts))
	for k, n := range counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	flat := make([]uint64, 0, 2*len(keys))
	for _, k := range keys {
		flat = append(flat, uint64(k), counts[k])
	}

	return codec.EncodeUints(flat)
}

func decodePairs(payload []byte) (map[int]uint64, error) {
	flat, err := codec.DecodeUints(payload)
	if err != nil || len(flat)%2 != 0 {
		return nil, fmt.Errorf("%w: malformed transposed counts", types.ErrCommunication)
	}

	return pairsToCounts(flat), nil
}

func pairsToCounts(flat []uint64) map[int]uint64 {
	out := make(map[int]uint64, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[int(flat[i])] = flat[i+1]
	}

	return out
}

// Abort tells every world rank that this run failed.
//
// Delivery is best effort; the first send error is returned after all ranks
// have been attempted.
func (c *Comm) Abort(ctx context.Context, reason string) error {
	var errs []error
	for r := range c.tr.Size() {
		if r == c.tr.Rank() {
			continue
		}
		env := types.Envelope{Run: c.run, Tag: types.AbortTag, Payload: []byte(reason)}
		if err := c.tr.Send(ctx, r, env); err != nil {
			errs = append(errs, fmt.Errorf("abort to rank %d: %w", r, err))
		}
	}

	return errors.Join(errs...)
}

// reduce runs gather-to-root, combine, broadcast.
func (c *Comm) reduce(ctx context.Context, op string, local []byte, combine func(acc, in []byte) ([]byte, error)) ([]byte, error) {
	tag := c.nextTag(op)
	if len(c.members) == 1 {
		return local, nil
	}

	root := c.members[0]
	if c.self != 0 {
		if err := c.send(ctx, root, tag, local); err != nil {
			return nil, err
		}

		return c.receive(ctx, root, tag+"/result")
	}

	acc := slices.Clone(local)
	for _, from := range c.members[1:] {
		in, err := c.receive(ctx, from, tag)
		if err != nil {
			return nil, err
		}
		acc, err = combine(acc, in)
		if err != nil {
			return nil, fmt.Errorf("%w: group %q %s from rank %d: %w", types.ErrCommunication, c.path, op, from, err)
		}
	}

	for _, to := range c.members[1:] {
		if err := c.send(ctx, to, tag+"/result", acc); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

func (c *Comm) nextTag(op string) string {
	tag := fmt.Sprintf("%s/%s/%d", c.path, op, c.seq)
	c.seq++

	return tag
}

func (c *Comm) send(ctx context.Context, to int, tag string, payload []byte) error {
	err := c.tr.Send(ctx, to, types.Envelope{Run: c.run, Tag: tag, Payload: payload})
	if err != nil {
		return c.wrap(ctx, "send", to, tag, err)
	}

	return nil
}

func (c *Comm) receive(ctx context.Context, from int, tag string) ([]byte, error) {
	rctx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	env, err := c.tr.Receive(rctx, c.run, from, tag)
	if err != nil {
		return nil, c.wrap(ctx, "receive", from, tag, err)
	}

	return env.Payload, nil
}

func (c *Comm) wrap(ctx context.Context, verb string, peer int, tag string, err error) error {
	switch {
	case errors.Is(err, types.ErrAborted):
		return fmt.Errorf("%s %s rank %d: %w", verb, tag, peer, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%s %s rank %d: %w", verb, tag, peer, ctx.Err())
	default:
		return fmt.Errorf("%w: %s %s rank %d: %w", types.ErrCommunication, verb, tag, peer, err)
	}
}

func combineFloat(op types.ReduceOp, a, b float64) float64 {
	switch op {
	case types.ReduceMin:
		return math.Min(a, b)
	case types.ReduceMax:
		return math.Max(a, b)
	default:
		return a + b
	}
}

func combineUint(op types.ReduceOp, a, b uint64) uint64 {
	switch op {
	case types.ReduceMin:
		return min(a, b)
	case types.ReduceMax:
		return max(a, b)
	default:
		return a + b
	}
}
