package strategy

import (
	"fmt"

	"github.com/arloliu/geoparti/types"
)

// Axis policy names accepted by ForPolicy and the partitioner configuration.
const (
	PolicyInertial        = "inertial"
	PolicyCoordinateCycle = "coordinate-cycle"
	PolicyLongestExtent   = "longest-extent"
)

// Policies lists the recognized axis policy names.
func Policies() []string {
	return []string{PolicyInertial, PolicyCoordinateCycle, PolicyLongestExtent}
}

// ForPolicy returns the built-in strategy registered under name.
//
// Parameters:
//   - name: One of PolicyInertial, PolicyCoordinateCycle, PolicyLongestExtent
//
// Returns:
//   - types.AxisStrategy: The matching strategy
//   - error: types.ErrUnknownAxisPolicy for any other name
func ForPolicy(name string) (types.AxisStrategy, error) {
	switch name {
	case PolicyInertial:
		return NewInertial(), nil
	case PolicyCoordinateCycle:
		return NewCoordinateCycle(), nil
	case PolicyLongestExtent:
		return NewLongestExtent(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownAxisPolicy, name)
	}
}
