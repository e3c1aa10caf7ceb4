package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cyclelog/internal/aggregate"
)

const snapshotColumns = `partition_id, trigger_type, start_time, end_time, duration_ms,
	actor_metrics, entity_metrics, step_durations, skipped_matches,
	total_matches, total_currency_moved, total_reputation_awarded, created_at`

// PutSnapshot persists a snapshot in one INSERT.
// Uses ON CONFLICT(partition_id) DO NOTHING; when the partition already has a
// snapshot nothing is written and ErrSnapshotExists is returned.
func (s *Store) PutSnapshot(ctx context.Context, snap aggregate.Snapshot) error {
	actors, err := marshalJSON(snap.ActorMetrics)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	entities, err := marshalJSON(snap.EntityMetrics)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	steps, err := marshalJSON(snap.StepDurations)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	skipped, err := marshalJSON(snap.SkippedMatches)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(partition_id) DO NOTHING
	`,
		snap.PartitionID,
		snap.TriggerType,
		toMillis(snap.StartTime),
		toMillis(snap.EndTime),
		snap.DurationMs,
		actors,
		entities,
		steps,
		skipped,
		snap.TotalMatches,
		snap.TotalCurrencyMoved,
		snap.TotalReputationAwarded,
		toMillis(snap.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: partition %d: %w", snap.PartitionID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put snapshot: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("put snapshot: partition %d: %w", snap.PartitionID, ErrSnapshotExists)
	}
	return nil
}

// GetSnapshot returns the snapshot of a partition, or ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, partitionID int64) (aggregate.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+` FROM snapshots WHERE partition_id = ?
	`, partitionID)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return aggregate.Snapshot{}, fmt.Errorf("snapshot for partition %d: %w", partitionID, ErrNotFound)
	}
	if err != nil {
		return aggregate.Snapshot{}, fmt.Errorf("get snapshot: partition %d: %w", partitionID, err)
	}
	return snap, nil
}

// GetSnapshotRange returns the snapshots of partitions lo..hi inclusive,
// ordered by partition id. Partitions without a snapshot are absent.
func (s *Store) GetSnapshotRange(ctx context.Context, lo, hi int64) ([]aggregate.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE partition_id BETWEEN ? AND ?
		ORDER BY partition_id ASC
	`, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("get snapshot range %d..%d: %w", lo, hi, err)
	}
	defer rows.Close()

	out := []aggregate.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("get snapshot range: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func scanSnapshot(row scanner) (aggregate.Snapshot, error) {
	var (
		snap                                aggregate.Snapshot
		start, end, created                 int64
		actors, entities, steps, skippedDoc string
	)
	err := row.Scan(
		&snap.PartitionID,
		&snap.TriggerType,
		&start,
		&end,
		&snap.DurationMs,
		&actors,
		&entities,
		&steps,
		&skippedDoc,
		&snap.TotalMatches,
		&snap.TotalCurrencyMoved,
		&snap.TotalReputationAwarded,
		&created,
	)
	if err != nil {
		return aggregate.Snapshot{}, err
	}

	snap.StartTime = fromMillis(start)
	snap.EndTime = fromMillis(end)
	snap.CreatedAt = fromMillis(created)

	if err := unmarshalJSON(actors, &snap.ActorMetrics); err != nil {
		return aggregate.Snapshot{}, err
	}
	if err := unmarshalJSON(entities, &snap.EntityMetrics); err != nil {
		return aggregate.Snapshot{}, err
	}
	if err := unmarshalJSON(steps, &snap.StepDurations); err != nil {
		return aggregate.Snapshot{}, err
	}
	if err := unmarshalJSON(skippedDoc, &snap.SkippedMatches); err != nil {
		return aggregate.Snapshot{}, err
	}
	return snap, nil
}
