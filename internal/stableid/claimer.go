// Package stableid claims process ranks through atomic JetStream KV creates.
//
// Processes that are started without a preassigned rank each claim the lowest
// free rank of a session. A claim is a lease: the key is kept alive by renewal
// and expires with the bucket TTL if its holder dies.
package stableid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/types"
)

// Common errors returned by the claimer.
var (
	ErrNoAvailableRank = errors.New("no available rank in session")
	ErrNotClaimed      = errors.New("rank not claimed")
	ErrAlreadyClaimed  = errors.New("rank already claimed by this claimer")
)

// Claimer claims and renews one rank of a session.
type Claimer struct {
	kv      jetstream.KeyValue
	session string
	size    int
	ttl     time.Duration
	logger  types.Logger

	mu     sync.Mutex
	rank   int
	held   bool
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClaimer creates a new rank claimer.
//
// Parameters:
//   - kv: NATS KV bucket for rank leases (its TTL bounds how long a dead holder blocks a rank)
//   - session: Session name shared by all processes of one partitioner
//   - size: Number of ranks in the session
//   - ttl: Lease duration; renewal runs every ttl/3 (0 disables renewal)
//   - logger: Logger for debug output (nil for none)
//
// Returns:
//   - *Claimer: New claimer instance
//
// Example:
//
//	c := stableid.NewClaimer(kv, "mesh-42", 8, 30*time.Second, logger)
//	rank, err := c.Claim(ctx)
func NewClaimer(kv jetstream.KeyValue, session string, size int, ttl time.Duration, logger types.Logger) *Claimer {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Claimer{
		kv:      kv,
		session: session,
		size:    size,
		ttl:     ttl,
		logger:  logger,
		rank:    -1,
	}
}

// Claim takes the lowest free rank and starts renewing its lease.
//
// Ranks are tried in order with KV Create, which fails atomically when the key exists.
//
// Returns:
//   - int: Claimed rank
//   - error: ErrNoAvailableRank when every rank is held, ErrAlreadyClaimed, or a KV error
func (c *Claimer) Claim(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.held {
		return c.rank, ErrAlreadyClaimed
	}

	for rank := range c.size {
		if err := ctx.Err(); err != nil {
			return -1, err
		}

		key := c.key(rank)
		revision, err := c.kv.Create(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339)))
		if err == nil {
			c.rank, c.held = rank, true
			c.logger.Info("rank claimed", "session", c.session, "rank", rank, "revision", revision)
			c.startRenewal()

			return rank, nil
		}
		if !errors.Is(err, jetstream.ErrKeyExists) {
			return -1, fmt.Errorf("failed to claim rank %d: %w", rank, err)
		}

		c.logger.Debug("rank already claimed, trying next", "session", c.session, "rank", rank)
	}

	return -1, fmt.Errorf("%w: %s has %d ranks", ErrNoAvailableRank, c.session, c.size)
}

// Rank returns the claimed rank, or -1.
func (c *Claimer) Rank() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.rank
}

// Release stops renewal and deletes the lease so the rank can be claimed again.
func (c *Claimer) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.held {
		return ErrNotClaimed
	}

	// stopCh is cleared once closed so a retried Release only waits on doneCh.
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	if c.doneCh != nil {
		select {
		case <-c.doneCh:
			c.doneCh = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := c.kv.Delete(ctx, c.key(c.rank)); err != nil {
		return fmt.Errorf("failed to release rank %d: %w", c.rank, err)
	}

	c.logger.Debug("rank released", "session", c.session, "rank", c.rank)
	c.rank, c.held = -1, false

	return nil
}

func (c *Claimer) startRenewal() {
	if c.ttl <= 0 {
		return
	}

	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.renewalLoop(c.key(c.rank), c.stopCh, c.doneCh)
}

func (c *Claimer) renewalLoop(key string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(c.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.ttl/3)
			_, err := c.kv.Put(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339)))
			cancel()
			if err != nil {
				c.logger.Warn("failed to renew rank lease", "key", key, "error", err)
			}
		}
	}
}

func (c *Claimer) key(rank int) string {
	return fmt.Sprintf("%s.rank.%d", c.session, rank)
}
