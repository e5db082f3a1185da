package strategy

import "errors"

// ErrInvalidDimensions indicates an axis request with dimensionality outside 1..types.MaxDimensions.
var ErrInvalidDimensions = errors.New("dimensions must be between 1 and 3")
