package natsbus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/geoparti/internal/stableid"
	"github.com/arloliu/geoparti/types"
)

// ErrNoAvailableRank is returned by ClaimRank when every rank of the session is held.
var ErrNoAvailableRank = stableid.ErrNoAvailableRank

// Lease is a claimed rank. The lease is renewed until Release is called.
type Lease struct {
	claimer *stableid.Claimer
	rank    int
}

// ClaimRank claims the lowest free rank of a session for processes started
// without a preassigned rank.
//
// The bucket's TTL bounds how long the rank of a crashed process stays blocked.
//
// Parameters:
//   - ctx: Bounds the claim
//   - kv: JetStream KV bucket holding rank leases
//   - session: Session name shared by all processes of one partitioner
//   - size: Number of ranks
//   - ttl: Lease renewal period basis (renewed every ttl/3; 0 disables renewal)
//   - logger: Logger (nil for none)
//
// Returns:
//   - *Lease: Claimed rank
//   - error: ErrNoAvailableRank or a KV error
//
// Example:
//
//	lease, err := natsbus.ClaimRank(ctx, kv, "mesh-42", 8, 30*time.Second, nil)
//	if err != nil {
//	    return err
//	}
//	defer lease.Release(context.Background())
//	tr, err := natsbus.New(ctx, nc, lease.Rank(), 8, natsbus.WithSubjectPrefix("geoparti.mesh-42"))
func ClaimRank(ctx context.Context, kv jetstream.KeyValue, session string, size int, ttl time.Duration, logger types.Logger) (*Lease, error) {
	c := stableid.NewClaimer(kv, session, size, ttl, logger)
	rank, err := c.Claim(ctx)
	if err != nil {
		return nil, err
	}

	return &Lease{claimer: c, rank: rank}, nil
}

// Rank returns the claimed rank.
func (l *Lease) Rank() int {
	return l.rank
}

// Release gives the rank back to the session.
func (l *Lease) Release(ctx context.Context) error {
	return l.claimer.Release(ctx)
}
