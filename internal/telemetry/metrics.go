// Package telemetry defines the Prometheus metrics shared by the event log
// components.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cyclelog"

// Metrics holds every collector. Each component receives the same *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	EventsAppended      *prometheus.CounterVec
	AppendRejected      *prometheus.CounterVec
	AppendDuration      prometheus.Histogram
	SequenceCacheMisses prometheus.Counter
	SequenceCacheClears prometheus.Counter
	SnapshotsCreated    prometheus.Counter
	SnapshotDuration    prometheus.Histogram
	MatchesSkipped      *prometheus.CounterVec
	MigrationRecords    *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		EventsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Events durably appended to the log",
		}, []string{"event_type"}),

		AppendRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "append_rejected_total",
			Help:      "Append requests rejected before or during the write",
		}, []string{"reason"}),

		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "append_duration_seconds",
			Help:      "Time spent inside the partition critical section per append call",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		SequenceCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_cache_misses_total",
			Help:      "Allocations that had to read the persisted maximum",
		}),

		SequenceCacheClears: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_cache_clears_total",
			Help:      "Explicit or failure-driven sequence cache invalidations",
		}),

		SnapshotsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_created_total",
			Help:      "Snapshots persisted",
		}),

		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_build_duration_seconds",
			Help:      "Time to read, fold and persist one snapshot",
			Buckets:   prometheus.DefBuckets,
		}),

		MatchesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_skipped_total",
			Help:      "Matches excluded from the opponent cross-reference",
		}, []string{"reason"}),

		MigrationRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migration_records_total",
			Help:      "Legacy records processed by the migrator",
		}, []string{"outcome"}),
	}
}

// NewDiscard returns metrics registered on a private registry.
// Used as the default when a component is built without metrics.
func NewDiscard() *Metrics {
	return New(prometheus.NewRegistry())
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metric values in the Prometheus text
// exposition format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
