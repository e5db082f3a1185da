package hooks

import (
	"context"
	"testing"

	"github.com/arloliu/geoparti/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnLevelComplete)
	require.NotNil(t, hooks.OnWarning)
}

func TestNopHooks_OnLevelComplete(t *testing.T) {
	hooks := NewNop()

	err := hooks.OnLevelComplete(context.Background(), types.LevelReport{Level: 1, Path: "0", GroupSize: 2})
	require.NoError(t, err)
}

func TestNopHooks_OnWarning(t *testing.T) {
	hooks := NewNop()

	err := hooks.OnWarning(context.Background(), types.Warning{Kind: types.WarningToleranceNotAchieved})
	require.NoError(t, err)
}

func TestFill(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		filled := Fill(nil)
		require.NotNil(t, filled.OnLevelComplete)
		require.NotNil(t, filled.OnWarning)
	})

	t.Run("keeps custom callbacks", func(t *testing.T) {
		var warned int
		filled := Fill(&types.Hooks{
			OnWarning: func(context.Context, types.Warning) error {
				warned++
				return nil
			},
		})

		require.NoError(t, filled.OnWarning(context.Background(), types.Warning{}))
		require.NoError(t, filled.OnLevelComplete(context.Background(), types.LevelReport{}))
		require.Equal(t, 1, warned)
	})
}
