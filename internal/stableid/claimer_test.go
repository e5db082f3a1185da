package stableid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	geopartitest "github.com/arloliu/geoparti/testing"
)

func newBucket(t *testing.T, name string, ttl time.Duration) jetstream.KeyValue {
	t.Helper()

	_, nc := geopartitest.StartEmbeddedNATS(t)
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  name,
		TTL:     ttl,
		Storage: jetstream.MemoryStorage,
	})
	require.NoError(t, err)

	return kv
}

func TestClaimer_ReleaseWithoutClaim(t *testing.T) {
	c := NewClaimer(nil, "s", 3, 0, nil)
	require.ErrorIs(t, c.Release(context.Background()), ErrNotClaimed)
	require.Equal(t, -1, c.Rank())
}

func TestClaimer_ClaimsLowestFreeRank(t *testing.T) {
	kv := newBucket(t, "ranks-sequential", time.Minute)
	ctx := t.Context()

	a := NewClaimer(kv, "mesh", 3, 0, nil)
	b := NewClaimer(kv, "mesh", 3, 0, nil)
	other := NewClaimer(kv, "other", 3, 0, nil)

	rank, err := a.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rank)

	rank, err = b.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rank)

	rank, err = other.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rank, "sessions are independent")

	_, err = a.Claim(ctx)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	require.NoError(t, a.Release(ctx))
	require.Equal(t, -1, a.Rank())
	require.ErrorIs(t, a.Release(ctx), ErrNotClaimed)

	c := NewClaimer(kv, "mesh", 3, 0, nil)
	rank, err = c.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rank, "released rank is reused")
}

func TestClaimer_Exhausted(t *testing.T) {
	kv := newBucket(t, "ranks-exhausted", time.Minute)
	ctx := t.Context()

	_, err := NewClaimer(kv, "s", 1, 0, nil).Claim(ctx)
	require.NoError(t, err)

	_, err = NewClaimer(kv, "s", 1, 0, nil).Claim(ctx)
	require.ErrorIs(t, err, ErrNoAvailableRank)
}

func TestClaimer_ConcurrentClaimsAreDistinct(t *testing.T) {
	kv := newBucket(t, "ranks-concurrent", time.Minute)
	ctx := t.Context()

	const size = 6
	ranks := make([]int, size)
	errs := make([]error, size)

	var wg sync.WaitGroup
	for i := range size {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ranks[i], errs[i] = NewClaimer(kv, "race", size, 0, nil).Claim(ctx)
		}()
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := range size {
		require.NoError(t, errs[i])
		require.False(t, seen[ranks[i]], "rank %d claimed twice", ranks[i])
		seen[ranks[i]] = true
	}
	require.Len(t, seen, size)
}

func TestClaimer_RenewalKeepsLease(t *testing.T) {
	ttl := 600 * time.Millisecond
	kv := newBucket(t, "ranks-renewal", ttl)
	ctx := t.Context()

	c := NewClaimer(kv, "lease", 1, ttl, nil)
	_, err := c.Claim(ctx)
	require.NoError(t, err)

	time.Sleep(3 * ttl)

	_, err = NewClaimer(kv, "lease", 1, ttl, nil).Claim(ctx)
	require.ErrorIs(t, err, ErrNoAvailableRank, "renewed lease must not expire")

	require.NoError(t, c.Release(ctx))
}

func TestClaimer_ReleaseRetriesAfterCancellation(t *testing.T) {
	ttl := time.Minute
	kv := newBucket(t, "ranks-retry", ttl)

	c := NewClaimer(kv, "retry", 2, ttl, nil)
	rank, err := c.Claim(t.Context())
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, c.Release(cancelled))

	require.NotPanics(t, func() {
		require.NoError(t, c.Release(t.Context()))
	})
	require.Equal(t, -1, c.Rank())
	require.ErrorIs(t, c.Release(t.Context()), ErrNotClaimed)

	again, err := NewClaimer(kv, "retry", 2, ttl, nil).Claim(t.Context())
	require.NoError(t, err)
	require.Equal(t, rank, again)
}
