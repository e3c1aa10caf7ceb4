package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/cyclelog/internal/event"
)

// insertChunk bounds the rows per INSERT statement so the bound parameter
// count stays under SQLite's variable limit.
const insertChunk = 50

// InsertEvents appends events in a single transaction using multi-row
// INSERT statements. Either every event is stored or none is.
//
// Events must already be validated and carry their ID, sequence number and
// timestamp. A (partition_id, sequence_number) collision returns an error
// wrapping ErrSequenceConflict.
func (s *Store) InsertEvents(ctx context.Context, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for start := 0; start < len(events); start += insertChunk {
		end := min(start+insertChunk, len(events))
		query, args, err := buildEventInsert(events[start:end])
		if err != nil {
			return fmt.Errorf("insert events: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert events: partition %d: %w", events[start].PartitionID, classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert events: commit: %w", err)
	}
	return nil
}

func buildEventInsert(events []event.Event) (string, []any, error) {
	var b strings.Builder
	b.WriteString(`INSERT INTO events (` + eventColumns + `) VALUES `)

	args := make([]any, 0, len(events)*10)
	for i, e := range events {
		payload, err := event.EncodePayload(e.Payload)
		if err != nil {
			return "", nil, err
		}
		metadata, err := marshalMetadata(e.Metadata)
		if err != nil {
			return "", nil, err
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.ID,
			e.PartitionID,
			string(e.Type),
			toMillis(e.Timestamp),
			e.Sequence,
			nullRef(e.ActorID),
			nullRef(e.EntityID),
			nullRef(e.MatchID),
			string(payload),
			metadata,
		)
	}
	return b.String(), args, nil
}

// classify maps driver constraint errors to store sentinels.
func classify(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			if strings.Contains(se.Error(), "sequence_number") {
				return fmt.Errorf("%w: %v", ErrSequenceConflict, err)
			}
		}
	}
	return err
}
