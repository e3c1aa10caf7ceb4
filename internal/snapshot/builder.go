// Package snapshot builds and reads the immutable per-partition snapshots.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cyclelog/internal/aggregate"
	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/telemetry"
)

// Store is the persistence the builder needs.
// Implemented by *store.Store.
type Store interface {
	FirstEventOfType(ctx context.Context, partitionID int64, t event.Type) (event.Event, error)
	ReadPartition(ctx context.Context, partitionID int64) ([]event.Event, error)
	UnmigratedLegacyMatchesBetween(ctx context.Context, from, to time.Time) ([]legacy.Match, error)
	PutSnapshot(ctx context.Context, snap aggregate.Snapshot) error
	GetSnapshot(ctx context.Context, partitionID int64) (aggregate.Snapshot, error)
	GetSnapshotRange(ctx context.Context, lo, hi int64) ([]aggregate.Snapshot, error)
}

// Builder creates snapshots of completed partitions.
type Builder struct {
	store         Store
	includeLegacy bool
	now           func() time.Time
	logger        *slog.Logger
	metrics       *telemetry.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithLegacyFold folds unmigrated legacy rows created inside a partition's
// window into its snapshot, so partitions that predate the event log still
// aggregate. Rows already converted to events are never folded twice.
func WithLegacyFold(enabled bool) Option {
	return func(b *Builder) { b.includeLegacy = enabled }
}

// WithClock sets the clock used for CreatedAt. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// New creates a Builder over s.
func New(s Store, opts ...Option) *Builder {
	b := &Builder{
		store:  s,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		b.metrics = telemetry.NewDiscard()
	}
	return b
}

// CreateSnapshot aggregates a completed partition and persists the result.
//
// If the partition already has a snapshot it is returned unchanged. If the
// start or complete marker is missing, *IncompletePartitionError is
// returned and nothing is written.
func (b *Builder) CreateSnapshot(ctx context.Context, partitionID int64) (aggregate.Snapshot, error) {
	existing, err := b.store.GetSnapshot(ctx, partitionID)
	if err == nil {
		b.logger.Debug("snapshot exists", "partition_id", partitionID)
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return aggregate.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	began := time.Now()
	start, complete, err := b.markers(ctx, partitionID)
	if err != nil {
		return aggregate.Snapshot{}, err
	}

	events, err := b.store.ReadPartition(ctx, partitionID)
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	if b.includeLegacy {
		folded, err := b.legacyEvents(ctx, partitionID, start.Timestamp, complete.Timestamp)
		if err != nil {
			return aggregate.Snapshot{}, err
		}
		events = append(folded, events...)
	}

	snap, err := aggregate.Compute(partitionID, start, complete, events)
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	snap.CreatedAt = event.NormalizeTime(b.now())

	if err := b.store.PutSnapshot(ctx, snap); err != nil {
		if errors.Is(err, store.ErrSnapshotExists) {
			// Lost a race with another builder; the stored row wins.
			return b.GetSnapshot(ctx, partitionID)
		}
		return aggregate.Snapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	b.metrics.SnapshotsCreated.Inc()
	b.metrics.SnapshotDuration.Observe(time.Since(began).Seconds())
	for _, sm := range snap.SkippedMatches {
		b.metrics.MatchesSkipped.WithLabelValues(sm.Reason).Inc()
		b.logger.Warn("match skipped in cross-reference",
			"partition_id", partitionID,
			"match_id", sm.MatchID,
			"participants", sm.Participants,
			"reason", sm.Reason,
		)
	}
	b.logger.Info("snapshot created",
		"partition_id", partitionID,
		"events", len(events),
		"actors", len(snap.ActorMetrics),
		"entities", len(snap.EntityMetrics),
		"matches", snap.TotalMatches,
	)
	return snap, nil
}

// GetSnapshot returns the stored snapshot of a partition.
// Returns an error wrapping store.ErrNotFound when there is none.
func (b *Builder) GetSnapshot(ctx context.Context, partitionID int64) (aggregate.Snapshot, error) {
	snap, err := b.store.GetSnapshot(ctx, partitionID)
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

// GetSnapshotRange returns the stored snapshots of partitions lo..hi
// inclusive, ordered by partition id.
func (b *Builder) GetSnapshotRange(ctx context.Context, lo, hi int64) ([]aggregate.Snapshot, error) {
	if lo > hi {
		return nil, fmt.Errorf("get snapshot range: from %d is after to %d", lo, hi)
	}
	snaps, err := b.store.GetSnapshotRange(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("get snapshot range: %w", err)
	}
	return snaps, nil
}

func (b *Builder) markers(ctx context.Context, partitionID int64) (event.Event, event.Event, error) {
	var (
		found   [2]event.Event
		missing []event.Type
	)
	for i, t := range []event.Type{event.TypeCycleStart, event.TypeCycleComplete} {
		e, err := b.store.FirstEventOfType(ctx, partitionID, t)
		switch {
		case errors.Is(err, store.ErrNotFound):
			missing = append(missing, t)
		case err != nil:
			return event.Event{}, event.Event{}, fmt.Errorf("create snapshot: %w", err)
		default:
			found[i] = e
		}
	}
	if len(missing) > 0 {
		return event.Event{}, event.Event{}, &IncompletePartitionError{PartitionID: partitionID, Missing: missing}
	}
	return found[0], found[1], nil
}

func (b *Builder) legacyEvents(ctx context.Context, partitionID int64, from, to time.Time) ([]event.Event, error) {
	matches, err := b.store.UnmigratedLegacyMatchesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: legacy fold: %w", err)
	}
	out := make([]event.Event, 0, len(matches))
	for _, m := range matches {
		e, err := legacy.ToEvent(m, partitionID)
		if err != nil {
			b.logger.Warn("legacy match not folded",
				"partition_id", partitionID,
				"legacy_id", m.ID,
				"error", err,
			)
			continue
		}
		out = append(out, e)
	}
	if len(out) > 0 {
		b.logger.Info("folded unmigrated legacy matches",
			"partition_id", partitionID,
			"count", len(out),
		)
	}
	return out, nil
}
