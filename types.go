package geoparti

import "github.com/arloliu/geoparti/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which internal packages depend on without importing the root
// package.
type (
	Point       = types.Point
	Axis        = types.Axis
	Cut         = types.Cut
	Result      = types.Result
	Export      = types.Export
	LevelReport = types.LevelReport
	Warning     = types.Warning
	WarningKind = types.WarningKind
	Envelope    = types.Envelope
)

// Re-export interfaces from the internal types package for convenience.
type (
	Transport        = types.Transport
	Reducer          = types.Reducer
	AxisStrategy     = types.AxisStrategy
	PointSource      = types.PointSource
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export constants from the internal types package.
const (
	MaxDimensions               = types.MaxDimensions
	WarningToleranceNotAchieved = types.WarningToleranceNotAchieved
)
