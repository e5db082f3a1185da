package geoparti

// Option configures a Partitioner with optional dependencies.
type Option func(*partitionerOptions)

// partitionerOptions holds optional Partitioner configuration.
type partitionerOptions struct {
	axis    AxisStrategy
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
}

// WithAxisStrategy sets a custom axis strategy, overriding Config.AxisPolicy.
//
// Parameters:
//   - s: AxisStrategy implementation
//
// Returns:
//   - Option: Functional option for NewPartitioner
//
// Example:
//
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithAxisStrategy(strategy.NewLongestExtent()))
func WithAxisStrategy(s AxisStrategy) Option {
	return func(o *partitionerOptions) {
		o.axis = s
	}
}

// WithHooks sets per-level event hooks.
//
// Hooks run synchronously on the partitioning goroutine; a hook error is
// logged and never fails the run.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewPartitioner
//
// Example:
//
//	hooks := &geoparti.Hooks{
//	    OnWarning: func(ctx context.Context, w geoparti.Warning) error {
//	        alerts.Inc()
//	        return nil
//	    },
//	}
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *partitionerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewPartitioner
//
// Example:
//
//	collector := geoparti.NewPrometheusMetrics(prometheus.DefaultRegisterer, "geoparti")
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *partitionerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewPartitioner
//
// Example:
//
//	logger := geoparti.NewSlogLogger(slog.Default())
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *partitionerOptions) {
		o.logger = logger
	}
}
