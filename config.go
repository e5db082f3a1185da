package geoparti

import (
	"fmt"
	"time"

	"github.com/arloliu/geoparti/internal/codec"
	"github.com/arloliu/geoparti/strategy"
	"github.com/arloliu/geoparti/types"
)

// Config is the configuration for the Partitioner.
//
// Every process taking part in a partitioning run must use an identical
// configuration; mismatches are detected at the start of each run and fail it
// with ErrInvalidInput on every process.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Dimensions is the number of coordinate axes in use (1, 2 or 3).
	// Coordinates beyond Dimensions are ignored.
	Dimensions int `yaml:"dimensions"`

	// ImbalanceTolerance is the accepted relative deviation of each cut from its
	// target weight: |lowWeight - f*totalWeight| / totalWeight.
	// Recommended: 0.01-0.1.
	ImbalanceTolerance float64 `yaml:"imbalanceTolerance"`

	// MaxIterations bounds the number of weight reductions spent by one median search.
	// When exhausted, the best cut found is used and a warning is attached to the result.
	// Recommended: 100.
	MaxIterations int `yaml:"maxIterations"`

	// AxisPolicy selects the cut direction: "inertial" (principal inertia axis),
	// "coordinate-cycle" (x, y, z, x, ... by level) or "longest-extent" (widest
	// bounding-box coordinate). Ignored when WithAxisStrategy is used.
	AxisPolicy string `yaml:"axisPolicy"`

	// DegenerateAxis is the coordinate index used when a group's points are
	// coincident and have no principal axis.
	DegenerateAxis int `yaml:"degenerateAxis"`

	// ExchangeTimeout bounds every individual receive of a collective or
	// migration exchange. A peer that does not answer in time fails the run
	// with ErrCommunication. Negative disables the timeout.
	// Recommended: 30 seconds.
	ExchangeTimeout time.Duration `yaml:"exchangeTimeout"`

	// CompressionThreshold is the encoded size in bytes above which migrated point
	// batches are zstd-compressed. Negative disables compression.
	CompressionThreshold int `yaml:"compressionThreshold"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Dimensions:           3,
		ImbalanceTolerance:   0.01,
		MaxIterations:        100,
		AxisPolicy:           strategy.PolicyInertial,
		DegenerateAxis:       0,
		ExchangeTimeout:      30 * time.Second,
		CompressionThreshold: codec.DefaultCompressionThreshold,
	}
}

// SetDefaults fills in missing configuration values with defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaults.Dimensions
	}
	if cfg.ImbalanceTolerance == 0 {
		cfg.ImbalanceTolerance = defaults.ImbalanceTolerance
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.AxisPolicy == "" {
		cfg.AxisPolicy = defaults.AxisPolicy
	}
	if cfg.ExchangeTimeout == 0 {
		cfg.ExchangeTimeout = defaults.ExchangeTimeout
	}
	if cfg.CompressionThreshold == 0 {
		cfg.CompressionThreshold = defaults.CompressionThreshold
	}
	// Note: DegenerateAxis 0 (x) is a valid choice, so no default is applied
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - 1 <= Dimensions <= 3
//   - 0 < ImbalanceTolerance < 1
//   - MaxIterations > 0
//   - AxisPolicy is a known policy
//   - 0 <= DegenerateAxis < Dimensions
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Dimensions < 1 || cfg.Dimensions > types.MaxDimensions {
		return fmt.Errorf("%w: Dimensions must be between 1 and %d, got %d",
			ErrInvalidConfig, types.MaxDimensions, cfg.Dimensions)
	}

	if !(cfg.ImbalanceTolerance > 0 && cfg.ImbalanceTolerance < 1) {
		return fmt.Errorf("%w: ImbalanceTolerance must be in (0, 1), got %v", ErrInvalidConfig, cfg.ImbalanceTolerance)
	}

	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("%w: MaxIterations must be > 0, got %d", ErrInvalidConfig, cfg.MaxIterations)
	}

	if _, err := strategy.ForPolicy(cfg.AxisPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.DegenerateAxis < 0 || cfg.DegenerateAxis >= cfg.Dimensions {
		return fmt.Errorf("%w: DegenerateAxis must be in [0, %d), got %d",
			ErrInvalidConfig, cfg.Dimensions, cfg.DegenerateAxis)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewPartitioner() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.ImbalanceTolerance > 0.1 {
		logger.Warn(
			"ImbalanceTolerance is above the recommended range, partitions may be noticeably unbalanced",
			"imbalanceTolerance", cfg.ImbalanceTolerance,
			"recommended", "0.01-0.1",
		)
	}

	if cfg.MaxIterations < 30 {
		logger.Warn(
			"MaxIterations is low, median searches may stop before reaching the tolerance",
			"maxIterations", cfg.MaxIterations,
			"recommended", 100,
		)
	}

	if cfg.ExchangeTimeout < 0 {
		logger.Warn(
			"ExchangeTimeout is disabled, an unreachable peer blocks the run until the context ends",
			"recommended", "30s",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// The exchange timeout is short so that tests exercising peer failures finish
// quickly. Use DefaultConfig() for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := geoparti.TestConfig()
//	cfg.Dimensions = 2
//	results, err := geoparti.RunLocal(ctx, cfg, inputs)
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.ExchangeTimeout = 5 * time.Second

	return cfg
}
