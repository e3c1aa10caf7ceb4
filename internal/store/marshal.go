package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/cyclelog/internal/event"
)

// toMillis converts t to the stored Unix millisecond form.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// fromMillis converts a stored Unix millisecond value to a UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// nullRef maps an absent (zero) reference to SQL NULL.
func nullRef(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// marshalMetadata converts metadata to JSON TEXT; empty metadata is NULL.
func marshalMetadata(m event.Metadata) (sql.NullString, error) {
	data, err := event.MarshalMetadata(m)
	if err != nil {
		return sql.NullString{}, err
	}
	if data == nil {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// marshalJSON converts an aggregate column value to JSON TEXT.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %T: %w", v, err)
	}
	return string(data), nil
}

// unmarshalJSON parses an aggregate column value.
func unmarshalJSON(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const eventColumns = `id, partition_id, event_type, event_timestamp, sequence_number,
	actor_id, entity_id, match_id, payload, metadata`

// scanEvent scans one events row and decodes its payload strictly.
func scanEvent(row scanner) (event.Event, error) {
	var (
		e                       event.Event
		typ                     string
		ts                      int64
		actor, entity, matchRef sql.NullInt64
		payload                 string
		metadata                sql.NullString
	)
	err := row.Scan(&e.ID, &e.PartitionID, &typ, &ts, &e.Sequence,
		&actor, &entity, &matchRef, &payload, &metadata)
	if err != nil {
		return event.Event{}, err
	}

	e.Type = event.Type(typ)
	e.Timestamp = fromMillis(ts)
	e.ActorID = actor.Int64
	e.EntityID = entity.Int64
	e.MatchID = matchRef.Int64

	e.Payload, err = event.DecodePayload(e.Type, []byte(payload))
	if err != nil {
		return event.Event{}, fmt.Errorf("event %s: %w", e.ID, err)
	}
	if metadata.Valid {
		e.Metadata, err = event.UnmarshalMetadata([]byte(metadata.String))
		if err != nil {
			return event.Event{}, fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	return e, nil
}
