package metrics

import "github.com/arloliu/geoparti/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	m := metrics.NewNop()
//	p, err := geoparti.NewPartitioner(&cfg, tr, geoparti.WithMetrics(m))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// PartitionMetrics implementation

// RecordPartition discards the partition call metric.
func (n *NopMetrics) RecordPartition(_ /* duration */ float64, _ /* success */ bool) {
	// No-op
}

// RecordWarning discards the warning metric.
func (n *NopMetrics) RecordWarning(_ /* kind */ types.WarningKind) {
	// No-op
}

// LevelMetrics implementation

// RecordLevel discards the level metric.
func (n *NopMetrics) RecordLevel(_ /* level */ int, _ /* imbalance */ float64, _ /* degenerate */ bool) {
	// No-op
}

// MedianMetrics implementation

// RecordMedianSearch discards the median search metric.
func (n *NopMetrics) RecordMedianSearch(_ /* iterations */ int, _ /* achieved */ bool) {
	// No-op
}

// MigrationMetrics implementation

// RecordMigration discards the migration metric.
func (n *NopMetrics) RecordMigration(_ /* sent */, _ /* received */, _ /* bytes */ int) {
	// No-op
}
