package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
)

// legacyIDExpr is the indexed expression over events.metadata.
// Queries must use it verbatim for SQLite to pick idx_events_legacy_match.
const legacyIDExpr = `json_extract(metadata, '$.legacyMatchId')`

// LegacyCursor is a keyset position in (created_at, id) order.
type LegacyCursor struct {
	CreatedAt time.Time
	ID        int64
}

// InsertLegacyMatches seeds the legacy table. Rows whose id already exists
// are left untouched. Returns the number of rows inserted.
func (s *Store) InsertLegacyMatches(ctx context.Context, matches []legacy.Match) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert legacy matches: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO legacy_matches (id, match_type, created_at, participants)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("insert legacy matches: prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range matches {
		participants, err := marshalJSON(m.Participants)
		if err != nil {
			return 0, fmt.Errorf("insert legacy match %d: %w", m.ID, err)
		}
		result, err := stmt.ExecContext(ctx, m.ID, m.MatchType, toMillis(m.CreatedAt), participants)
		if err != nil {
			return 0, fmt.Errorf("insert legacy match %d: %w", m.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert legacy match %d: rows affected: %w", m.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert legacy matches: commit: %w", err)
	}
	return inserted, nil
}

// ListLegacyHeaders returns the id and creation time of every legacy row in
// (created_at, id) order.
func (s *Store) ListLegacyHeaders(ctx context.Context) ([]legacy.Header, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at FROM legacy_matches ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list legacy headers: %w", err)
	}
	defer rows.Close()

	headers := []legacy.Header{}
	for rows.Next() {
		var (
			h  legacy.Header
			ms int64
		)
		if err := rows.Scan(&h.ID, &ms); err != nil {
			return nil, fmt.Errorf("scan legacy header: %w", err)
		}
		h.CreatedAt = fromMillis(ms)
		headers = append(headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy headers: %w", err)
	}
	return headers, nil
}

// ListLegacyMatchesAfter returns up to limit legacy rows strictly after the
// cursor in (created_at, id) order. A nil cursor starts from the oldest row.
func (s *Store) ListLegacyMatchesAfter(ctx context.Context, after *LegacyCursor, limit int) ([]legacy.Match, error) {
	query := `SELECT id, match_type, created_at, participants FROM legacy_matches`
	var args []any
	if after != nil {
		ms := toMillis(after.CreatedAt)
		query += ` WHERE created_at > ? OR (created_at = ? AND id > ?)`
		args = append(args, ms, ms, after.ID)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	return s.queryLegacy(ctx, "list legacy matches", query, args...)
}

// UnmigratedLegacyMatchesBetween returns legacy rows created in [from, to]
// that no event references through metadata.legacyMatchId.
func (s *Store) UnmigratedLegacyMatchesBetween(ctx context.Context, from, to time.Time) ([]legacy.Match, error) {
	return s.queryLegacy(ctx, "unmigrated legacy matches", `
		SELECT lm.id, lm.match_type, lm.created_at, lm.participants
		FROM legacy_matches lm
		WHERE lm.created_at BETWEEN ? AND ?
		AND NOT EXISTS (
			SELECT 1 FROM events WHERE `+legacyIDExpr+` = lm.id
		)
		ORDER BY lm.created_at ASC, lm.id ASC
	`, toMillis(from), toMillis(to))
}

func (s *Store) queryLegacy(ctx context.Context, op, query string, args ...any) ([]legacy.Match, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	matches := []legacy.Match{}
	for rows.Next() {
		var (
			m            legacy.Match
			ms           int64
			participants string
		)
		if err := rows.Scan(&m.ID, &m.MatchType, &ms, &participants); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		m.CreatedAt = fromMillis(ms)
		m.Participants = []event.Participant{}
		if err := unmarshalJSON(participants, &m.Participants); err != nil {
			return nil, fmt.Errorf("%s: legacy match %d: %w", op, m.ID, err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return matches, nil
}

// ConvertedLegacyIDs reports which of ids already have at least one event
// carrying them as metadata.legacyMatchId.
func (s *Store) ConvertedLegacyIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	converted := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return converted, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+legacyIDExpr+`
		FROM events
		WHERE `+legacyIDExpr+` IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("converted legacy ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("converted legacy ids: scan: %w", err)
		}
		converted[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("converted legacy ids: iterate: %w", err)
	}
	return converted, nil
}
