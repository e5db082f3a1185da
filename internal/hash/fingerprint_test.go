package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDs(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		ids := []uint64{1, 5, 9, 1 << 60}
		require.Equal(t, IDs(ids), IDs(append([]uint64(nil), ids...)))
	})

	t.Run("depends on order", func(t *testing.T) {
		require.NotEqual(t, IDs([]uint64{1, 2}), IDs([]uint64{2, 1}))
	})

	t.Run("distinguishes sets", func(t *testing.T) {
		require.NotEqual(t, IDs([]uint64{1, 2, 3}), IDs([]uint64{1, 2, 4}))
		require.NotEqual(t, IDs(nil), IDs([]uint64{0}))
	})

	t.Run("seed changes fingerprint", func(t *testing.T) {
		ids := []uint64{7, 8}
		require.NotEqual(t, IDsSeed(ids, 1), IDsSeed(ids, 2))
		require.Equal(t, IDs(ids), IDsSeed(ids, 0))
	})
}

func TestString(t *testing.T) {
	require.Equal(t, String("dims=3"), String("dims=3"))
	require.NotEqual(t, String("dims=3"), String("dims=2"))
}
