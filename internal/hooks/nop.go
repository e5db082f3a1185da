package hooks

import (
	"context"

	"github.com/arloliu/geoparti/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.LevelReport) error = (*NopHooks)(nil).OnLevelComplete
	_ func(context.Context, types.Warning) error     = (*NopHooks)(nil).OnWarning
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnLevelComplete: h.OnLevelComplete,
		OnWarning:       h.OnWarning,
	}
}

// Fill returns a copy of hooks with every nil callback replaced by a no-op.
//
// Parameters:
//   - hooks: Caller-supplied hooks (may be nil)
//
// Returns:
//   - types.Hooks: Hooks safe to call without nil checks
func Fill(hooks *types.Hooks) types.Hooks {
	filled := NewNop()
	if hooks == nil {
		return filled
	}
	if hooks.OnLevelComplete != nil {
		filled.OnLevelComplete = hooks.OnLevelComplete
	}
	if hooks.OnWarning != nil {
		filled.OnWarning = hooks.OnWarning
	}

	return filled
}

// OnLevelComplete is a no-op implementation.
func (h *NopHooks) OnLevelComplete(ctx context.Context, report types.LevelReport) error {
	return nil
}

// OnWarning is a no-op implementation.
func (h *NopHooks) OnWarning(ctx context.Context, warning types.Warning) error {
	return nil
}
