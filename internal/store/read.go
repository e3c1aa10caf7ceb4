package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cyclelog/internal/event"
)

// MaxSequence returns the highest persisted sequence number of a partition,
// or 0 when the partition has no events.
func (s *Store) MaxSequence(ctx context.Context, partitionID int64) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) FROM events WHERE partition_id = ?
	`, partitionID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("max sequence: partition %d: %w", partitionID, err)
	}
	return last, nil
}

// ReadPartition returns every event of a partition ordered by sequence number.
// Returns an empty slice (not nil) when the partition has no events.
func (s *Store) ReadPartition(ctx context.Context, partitionID int64) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE partition_id = ?
		ORDER BY sequence_number ASC
	`, partitionID)
	if err != nil {
		return nil, fmt.Errorf("read partition %d: %w", partitionID, err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("read partition %d: %w", partitionID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partition %d: %w", partitionID, err)
	}
	return events, nil
}

// FirstEventOfType returns the lowest-sequence event of type t in a partition.
// Returns ErrNotFound when there is none.
func (s *Store) FirstEventOfType(ctx context.Context, partitionID int64, t event.Type) (event.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE partition_id = ? AND event_type = ?
		ORDER BY sequence_number ASC
		LIMIT 1
	`, partitionID, string(t))

	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, fmt.Errorf("%s in partition %d: %w", t, partitionID, ErrNotFound)
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("read %s in partition %d: %w", t, partitionID, err)
	}
	return e, nil
}

// CountEvents returns the number of events in a partition.
func (s *Store) CountEvents(ctx context.Context, partitionID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events WHERE partition_id = ?
	`, partitionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: partition %d: %w", partitionID, err)
	}
	return n, nil
}

// PartitionSummary describes one partition present in the log.
type PartitionSummary struct {
	PartitionID int64 `json:"partitionId"`
	Events      int64 `json:"events"`
	MaxSequence int64 `json:"maxSequence"`
}

// ListPartitions returns a summary of every partition ordered by id.
func (s *Store) ListPartitions(ctx context.Context) ([]PartitionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT partition_id, COUNT(*), MAX(sequence_number)
		FROM events
		GROUP BY partition_id
		ORDER BY partition_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	out := []PartitionSummary{}
	for rows.Next() {
		var p PartitionSummary
		if err := rows.Scan(&p.PartitionID, &p.Events, &p.MaxSequence); err != nil {
			return nil, fmt.Errorf("scan partition summary: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate partitions: %w", err)
	}
	return out, nil
}
