// Package memory provides an in-process Transport connecting goroutines.
//
// A Cluster owns one mailbox per rank; Send delivers straight into the
// destination mailbox. It is the transport behind geoparti.RunLocal and the
// default choice for tests.
package memory

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/arloliu/geoparti/internal/mailbox"
	"github.com/arloliu/geoparti/types"
)

// Cluster is a fixed set of in-process peers.
type Cluster struct {
	boxes      []*mailbox.Mailbox
	transports []*Transport
}

// NewCluster creates size connected peers.
//
// Parameters:
//   - size: Number of ranks (must be positive)
//
// Returns:
//   - *Cluster: Cluster whose Transport(r) is rank r's endpoint
//   - error: ErrInvalidInput if size is not positive
func NewCluster(size int) (*Cluster, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cluster size %d: %w", size, types.ErrInvalidInput)
	}

	c := &Cluster{
		boxes:      make([]*mailbox.Mailbox, size),
		transports: make([]*Transport, size),
	}
	for r := range size {
		c.boxes[r] = mailbox.New()
	}
	for r := range size {
		c.transports[r] = &Transport{cluster: c, rank: r}
	}

	return c, nil
}

// Size returns the number of ranks.
func (c *Cluster) Size() int {
	return len(c.transports)
}

// Transport returns the endpoint of rank.
func (c *Cluster) Transport(rank int) *Transport {
	return c.transports[rank]
}

// Transports returns every endpoint in rank order.
func (c *Cluster) Transports() []*Transport {
	out := make([]*Transport, len(c.transports))
	copy(out, c.transports)

	return out
}

// Close closes every endpoint.
func (c *Cluster) Close() error {
	for _, t := range c.transports {
		_ = t.Close()
	}

	return nil
}

// Transport is one rank's endpoint in a Cluster.
type Transport struct {
	cluster *Cluster
	rank    int
	closed  atomic.Bool
}

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

// Rank returns this endpoint's rank.
func (t *Transport) Rank() int { return t.rank }

// Size returns the number of ranks in the cluster.
func (t *Transport) Size() int { return len(t.cluster.boxes) }

// Send delivers env into the mailbox of rank to.
func (t *Transport) Send(ctx context.Context, to int, env types.Envelope) error {
	if t.closed.Load() {
		return types.ErrTransportClosed
	}
	if to < 0 || to >= len(t.cluster.boxes) {
		return fmt.Errorf("send to %d: %w", to, types.ErrInvalidRank)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	env.From = t.rank

	return t.cluster.boxes[to].Deliver(env)
}

// Receive blocks until the envelope for (run, from, tag) is delivered to this rank.
func (t *Transport) Receive(ctx context.Context, run uint64, from int, tag string) (types.Envelope, error) {
	if from < 0 || from >= len(t.cluster.boxes) {
		return types.Envelope{}, fmt.Errorf("receive from %d: %w", from, types.ErrInvalidRank)
	}

	return t.cluster.boxes[t.rank].Receive(ctx, run, from, tag)
}

// Release drops buffered state for a finished run.
func (t *Transport) Release(run uint64) {
	t.cluster.boxes[t.rank].Release(run)
}

// Pending returns the number of undelivered or unclaimed message slots on this rank.
func (t *Transport) Pending() int {
	return t.cluster.boxes[t.rank].Pending()
}

// Close marks the endpoint closed and fails its pending receives.
func (t *Transport) Close() error {
	if t.closed.CompareAndSwap(false, true) {
		t.cluster.boxes[t.rank].Close()
	}

	return nil
}
