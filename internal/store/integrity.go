package store

import (
	"context"
	"fmt"
)

// ConversionCounts compares the legacy table with its converted events.
type ConversionCounts struct {
	LegacyRows      int64
	ConvertedEvents int64
}

// DuplicateConversion is a legacy id converted more than once.
type DuplicateConversion struct {
	LegacyID int64
	Count    int64
}

// CountConversions returns the number of legacy rows and the number of
// events carrying a legacyMatchId.
func (s *Store) CountConversions(ctx context.Context) (ConversionCounts, error) {
	var c ConversionCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM legacy_matches),
			(SELECT COUNT(*) FROM events WHERE `+legacyIDExpr+` IS NOT NULL)
	`).Scan(&c.LegacyRows, &c.ConvertedEvents)
	if err != nil {
		return ConversionCounts{}, fmt.Errorf("count conversions: %w", err)
	}
	return c, nil
}

// MissingConversions returns legacy ids with no converted event, ascending.
func (s *Store) MissingConversions(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "missing conversions", `
		SELECT lm.id
		FROM legacy_matches lm
		WHERE NOT EXISTS (
			SELECT 1 FROM events WHERE `+legacyIDExpr+` = lm.id
		)
		ORDER BY lm.id ASC
	`)
}

// OrphanConversions returns legacyMatchId values that reference no legacy
// row, ascending.
func (s *Store) OrphanConversions(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "orphan conversions", `
		SELECT DISTINCT `+legacyIDExpr+` AS legacy_id
		FROM events
		WHERE `+legacyIDExpr+` IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM legacy_matches lm WHERE lm.id = `+legacyIDExpr+`
		)
		ORDER BY legacy_id ASC
	`)
}

// DuplicateConversions returns legacy ids referenced by more than one event.
func (s *Store) DuplicateConversions(ctx context.Context) ([]DuplicateConversion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+legacyIDExpr+` AS legacy_id, COUNT(*)
		FROM events
		WHERE `+legacyIDExpr+` IS NOT NULL
		GROUP BY legacy_id
		HAVING COUNT(*) > 1
		ORDER BY legacy_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("duplicate conversions: %w", err)
	}
	defer rows.Close()

	out := []DuplicateConversion{}
	for rows.Next() {
		var d DuplicateConversion
		if err := rows.Scan(&d.LegacyID, &d.Count); err != nil {
			return nil, fmt.Errorf("duplicate conversions: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("duplicate conversions: iterate: %w", err)
	}
	return out, nil
}

func (s *Store) queryIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return ids, nil
}
