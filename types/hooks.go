package types

import "context"

// Hooks defines callbacks for partitioning events.
//
// All hooks are optional and are called synchronously on the partitioning
// goroutine between collective steps, so they must complete quickly: a slow
// hook stalls every peer waiting on this process.
//
// Hook errors are logged but never fail the partitioning call.
//
// Example:
//
//	hooks := &geoparti.Hooks{
//	    OnWarning: func(ctx context.Context, w geoparti.Warning) error {
//	        warnings.Add(1)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnLevelComplete is called after each bisection level finished migrating.
	OnLevelComplete func(ctx context.Context, report LevelReport) error

	// OnWarning is called for every quality warning raised along this process's path.
	OnWarning func(ctx context.Context, warning Warning) error
}
