package engine

import "time"

// MetricsCollector provides hooks for observing sync operations.
type MetricsCollector interface {
	// RecordSyncDuration records how long a sync run took, by mode.
	RecordSyncDuration(mode string, duration time.Duration)

	// RecordSyncRecords records the number of changes pushed and records pulled.
	RecordSyncRecords(pushed, pulled int)

	// RecordSyncErrors records sync errors by operation and kind.
	RecordSyncErrors(operation, kind string)

	// RecordConflicts records the number of conflicts detected in a run.
	RecordConflicts(detected int)

	// RecordResolution records a conflict resolution outcome.
	RecordResolution(decision string)
}

// NoOpMetricsCollector is the default collector; it does nothing.
type NoOpMetricsCollector struct{}

var _ MetricsCollector = (*NoOpMetricsCollector)(nil)

func (n *NoOpMetricsCollector) RecordSyncDuration(mode string, duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordSyncRecords(pushed, pulled int)                   {}
func (n *NoOpMetricsCollector) RecordSyncErrors(operation, kind string)                {}
func (n *NoOpMetricsCollector) RecordConflicts(detected int)                           {}
func (n *NoOpMetricsCollector) RecordResolution(decision string)                       {}
