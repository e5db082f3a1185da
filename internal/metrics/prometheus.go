package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/geoparti/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use, so constructing a
// PrometheusCollector never touches the registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	partitionDuration *prometheus.HistogramVec
	partitionResults  *prometheus.CounterVec
	warnings          *prometheus.CounterVec
	levels            *prometheus.CounterVec
	levelImbalance    prometheus.Histogram
	medianIterations  prometheus.Histogram
	medianMisses      prometheus.Counter
	migratedPoints    *prometheus.CounterVec
	migratedBytes     prometheus.Counter
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "geoparti" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "geoparti"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.partitionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "partition",
			Name:      "duration_seconds",
			Help:      "Duration of partitioning calls in seconds by result.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		}, []string{"result"})

		p.partitionResults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "partition",
			Name:      "results_total",
			Help:      "Total partitioning calls by result (success, failure).",
		}, []string{"result"})

		p.warnings = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "partition",
			Name:      "warnings_total",
			Help:      "Total quality warnings by kind.",
		}, []string{"kind"})

		p.levels = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "bisection",
			Name:      "levels_total",
			Help:      "Total bisection levels by depth and axis kind (regular, degenerate).",
		}, []string{"level", "axis"})

		p.levelImbalance = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "bisection",
			Name:      "imbalance_ratio",
			Help:      "Realized relative imbalance of each cut.",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5},
		})

		p.medianIterations = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "median",
			Name:      "iterations",
			Help:      "Distributed reductions spent per median search.",
			Buckets:   prometheus.LinearBuckets(0, 8, 14),
		})

		p.medianMisses = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "median",
			Name:      "tolerance_misses_total",
			Help:      "Median searches that ended without meeting the imbalance tolerance.",
		})

		p.migratedPoints = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "migration",
			Name:      "points_total",
			Help:      "Points migrated between sub-groups by direction (sent, received).",
		}, []string{"direction"})

		p.migratedBytes = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "migration",
			Name:      "bytes_total",
			Help:      "Encoded payload bytes sent during migration.",
		})

		p.reg.MustRegister(
			p.partitionDuration,
			p.partitionResults,
			p.warnings,
			p.levels,
			p.levelImbalance,
			p.medianIterations,
			p.medianMisses,
			p.migratedPoints,
			p.migratedBytes,
		)
	})
}

// RecordPartition records a partitioning call outcome and duration.
func (p *PrometheusCollector) RecordPartition(duration float64, success bool) {
	p.ensureRegistered()
	result := "failure"
	if success {
		result = "success"
	}
	p.partitionDuration.WithLabelValues(result).Observe(duration)
	p.partitionResults.WithLabelValues(result).Inc()
}

// RecordWarning increments the warning counter for kind.
func (p *PrometheusCollector) RecordWarning(kind types.WarningKind) {
	p.ensureRegistered()
	p.warnings.WithLabelValues(string(kind)).Inc()
}

// RecordLevel records a completed bisection level.
func (p *PrometheusCollector) RecordLevel(level int, imbalance float64, degenerate bool) {
	p.ensureRegistered()
	axis := "regular"
	if degenerate {
		axis = "degenerate"
	}
	p.levels.WithLabelValues(strconv.Itoa(level), axis).Inc()
	p.levelImbalance.Observe(imbalance)
}

// RecordMedianSearch records the reductions spent by a median search.
func (p *PrometheusCollector) RecordMedianSearch(iterations int, achieved bool) {
	p.ensureRegistered()
	p.medianIterations.Observe(float64(iterations))
	if !achieved {
		p.medianMisses.Inc()
	}
}

// RecordMigration records migrated point counts and payload bytes.
func (p *PrometheusCollector) RecordMigration(sent, received, bytes int) {
	p.ensureRegistered()
	p.migratedPoints.WithLabelValues("sent").Add(float64(sent))
	p.migratedPoints.WithLabelValues("received").Add(float64(received))
	p.migratedBytes.Add(float64(bytes))
}
