package group

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/geoparti/internal/codec"
	"github.com/arloliu/geoparti/types"
)

// Communicator is the group-scoped messaging a migration needs.
type Communicator interface {
	types.Reducer

	// Rank returns this process's world rank.
	Rank() int

	// Index returns this process's position within the group.
	Index() int

	// Members returns the group's world ranks in group order.
	Members() []int

	// Exchange sends payloads by destination world rank and receives one payload per expected source.
	Exchange(ctx context.Context, outgoing map[int][]byte, expect []int) (map[int][]byte, error)

	// Transpose turns per-destination counts into per-source counts addressed to this member.
	Transpose(ctx context.Context, counts map[int]uint64) (map[int]uint64, error)

	// Barrier blocks until every member has entered it.
	Barrier(ctx context.Context) error
}

// Sides holds the world ranks of the two sub-groups a group splits into.
type Sides struct {
	Low  []int
	High []int
}

// Stats counts what one process moved during a migration.
type Stats struct {
	Sent     int
	Received int
	Bytes    int
}

// Migrate moves every point to the side of the split it belongs to.
//
// Points classified onto the opposite side are dealt round-robin over the
// opposite sub-group, starting at an offset equal to this process's index on its
// own side. The per-pair point counts are transposed across the group first, so
// each process knows exactly which peers will send to it and how many points to
// expect. Only pairs with a non-zero count exchange a message. The call returns
// after a group barrier, so no member starts the next level while another is
// still migrating.
//
// Parameters:
//   - ctx: Context for cancellation
//   - comm: Communicator of the group being split
//   - sides: World ranks of the low and high sub-groups
//   - points: Process-local points
//   - isLow: Classifier; must agree on every process
//   - threshold: Compression threshold for point batches
//
// Returns:
//   - []types.Point: Points now held (kept points first, then received points by sender order)
//   - Stats: Counts of moved points and payload bytes
//   - error: ErrCommunication on count mismatch, or any collective error
func Migrate(
	ctx context.Context,
	comm Communicator,
	sides Sides,
	points []types.Point,
	isLow func(types.Point) bool,
	threshold int,
) ([]types.Point, Stats, error) {
	me := comm.Rank()
	members := comm.Members()

	mine, opposite := sides.Low, sides.High
	amLow := slices.Contains(sides.Low, me)
	if !amLow {
		mine, opposite = sides.High, sides.Low
	}
	offset := slices.Index(mine, me)
	if offset < 0 || len(opposite) == 0 {
		return nil, Stats{}, fmt.Errorf("rank %d has no place in split low=%v high=%v", me, sides.Low, sides.High)
	}

	kept := make([]types.Point, 0, len(points))
	batches := make(map[int][]types.Point)
	k := 0
	for _, p := range points {
		if isLow(p) == amLow {
			kept = append(kept, p)
			continue
		}
		to := opposite[(offset+k)%len(opposite)]
		batches[to] = append(batches[to], p)
		k++
	}

	sending := make(map[int]uint64, len(batches))
	for to, batch := range batches {
		sending[to] = uint64(len(batch))
	}
	incomingCounts, err := comm.Transpose(ctx, sending)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("migration counts: %w", err)
	}

	var stats Stats
	outgoing := make(map[int][]byte, len(batches))
	for to, batch := range batches {
		payload, err := codec.EncodePoints(batch, threshold)
		if err != nil {
			return nil, Stats{}, err
		}
		outgoing[to] = payload
		stats.Sent += len(batch)
		stats.Bytes += len(payload)
	}

	expect := make([]int, 0, len(incomingCounts))
	for _, r := range members {
		if incomingCounts[r] > 0 {
			expect = append(expect, r)
		}
	}

	received, err := comm.Exchange(ctx, outgoing, expect)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("migration exchange: %w", err)
	}

	for _, from := range expect {
		incoming, err := codec.DecodePoints(received[from])
		if err != nil {
			return nil, Stats{}, fmt.Errorf("%w: migration payload from rank %d: %w", types.ErrCommunication, from, err)
		}
		want := incomingCounts[from]
		if uint64(len(incoming)) != want {
			return nil, Stats{}, fmt.Errorf("%w: rank %d sent %d points, expected %d",
				types.ErrCommunication, from, len(incoming), want)
		}
		for _, p := range incoming {
			p.Owner = me
			kept = append(kept, p)
		}
		stats.Received += len(incoming)
		stats.Bytes += len(received[from])
	}

	if err := comm.Barrier(ctx); err != nil {
		return nil, Stats{}, fmt.Errorf("migration barrier: %w", err)
	}

	return kept, stats, nil
}
