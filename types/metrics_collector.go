package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Methods may be called concurrently by the partitioners of different ranks
// sharing one collector and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	PartitionMetrics
	LevelMetrics
	MedianMetrics
	MigrationMetrics
}

// PartitionMetrics defines metrics for whole partitioning calls.
type PartitionMetrics interface {
	// RecordPartition records a completed partitioning call.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	//   - success: true if the call produced a result
	RecordPartition(duration float64, success bool)

	// RecordWarning records a non-fatal quality warning.
	RecordWarning(kind WarningKind)
}

// LevelMetrics defines metrics for individual bisection levels.
type LevelMetrics interface {
	// RecordLevel records one completed bisection level.
	//
	// Parameters:
	//   - level: Recursion depth
	//   - imbalance: Realized relative imbalance of the cut
	//   - degenerate: true if the fallback axis was used
	RecordLevel(level int, imbalance float64, degenerate bool)
}

// MedianMetrics defines metrics for the distributed median search.
type MedianMetrics interface {
	// RecordMedianSearch records the reductions spent searching a cut.
	//
	// Parameters:
	//   - iterations: Number of distributed reductions
	//   - achieved: true if the imbalance tolerance was met
	RecordMedianSearch(iterations int, achieved bool)
}

// MigrationMetrics defines metrics for point migration between processes.
type MigrationMetrics interface {
	// RecordMigration records points moved by this process at one level.
	//
	// Parameters:
	//   - sent: Points sent to the opposite sub-group
	//   - received: Points received from the opposite sub-group
	//   - bytes: Encoded payload bytes sent
	RecordMigration(sent, received, bytes int)
}
