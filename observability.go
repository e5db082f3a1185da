package geoparti

import (
	"log/slog"

	"github.com/arloliu/geoparti/internal/logging"
	"github.com/arloliu/geoparti/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// NewPrometheusMetrics returns a MetricsCollector backed by Prometheus.
//
// Collectors are registered with reg on first use. An empty namespace
// defaults to "geoparti".
//
// Parameters:
//   - reg: Registerer to register collectors with (nil uses prometheus.DefaultRegisterer)
//   - namespace: Metric name prefix
//
// Returns:
//   - MetricsCollector: Prometheus-backed collector
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewSlogLogger adapts a *slog.Logger to the Logger interface.
//
// Parameters:
//   - logger: slog logger (nil uses slog.Default())
//
// Returns:
//   - Logger: Adapter forwarding to logger
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}
