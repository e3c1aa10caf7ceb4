package migrate

import (
	"context"
	"fmt"
)

// ViolationCode categorizes integrity violations found by Verify.
type ViolationCode string

const (
	// CodeCountMismatch: legacy rows and converted events differ in number.
	CodeCountMismatch ViolationCode = "COUNT_MISMATCH"

	// CodeMissing: a legacy row has no converted event.
	CodeMissing ViolationCode = "MISSING_CONVERSION"

	// CodeOrphan: a converted event references no legacy row.
	CodeOrphan ViolationCode = "ORPHAN_CONVERSION"

	// CodeDuplicate: a legacy row was converted more than once.
	CodeDuplicate ViolationCode = "DUPLICATE_CONVERSION"
)

// IntegrityViolation is one problem found by Verify. Violations are
// reported, never returned as errors.
type IntegrityViolation struct {
	Code     ViolationCode `json:"code"`
	LegacyID int64         `json:"legacyId,omitempty"`
	Count    int64         `json:"count,omitempty"`
	Message  string        `json:"message"`
}

// Report is the outcome of Verify.
type Report struct {
	IsValid       bool                 `json:"isValid"`
	LegacyCount   int64                `json:"legacyCount"`
	MigratedCount int64                `json:"migratedCount"`
	Issues        []IntegrityViolation `json:"issues"`
}

// Verify compares the legacy table with its converted events.
// The returned error is non-nil only when a query fails.
func (m *Migrator) Verify(ctx context.Context) (Report, error) {
	counts, err := m.store.CountConversions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}
	rep := Report{
		LegacyCount:   counts.LegacyRows,
		MigratedCount: counts.ConvertedEvents,
		Issues:        []IntegrityViolation{},
	}
	if counts.LegacyRows != counts.ConvertedEvents {
		rep.Issues = append(rep.Issues, IntegrityViolation{
			Code:    CodeCountMismatch,
			Message: fmt.Sprintf("%d legacy rows but %d converted events", counts.LegacyRows, counts.ConvertedEvents),
		})
	}

	missing, err := m.store.MissingConversions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}
	for _, id := range missing {
		rep.Issues = append(rep.Issues, IntegrityViolation{
			Code:     CodeMissing,
			LegacyID: id,
			Message:  fmt.Sprintf("legacy match %d has no converted event", id),
		})
	}

	orphans, err := m.store.OrphanConversions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}
	for _, id := range orphans {
		rep.Issues = append(rep.Issues, IntegrityViolation{
			Code:     CodeOrphan,
			LegacyID: id,
			Message:  fmt.Sprintf("converted event references missing legacy match %d", id),
		})
	}

	dups, err := m.store.DuplicateConversions(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("verify: %w", err)
	}
	for _, d := range dups {
		rep.Issues = append(rep.Issues, IntegrityViolation{
			Code:     CodeDuplicate,
			LegacyID: d.LegacyID,
			Count:    d.Count,
			Message:  fmt.Sprintf("legacy match %d converted %d times", d.LegacyID, d.Count),
		})
	}

	rep.IsValid = len(rep.Issues) == 0
	m.logger.Info("verification finished",
		"valid", rep.IsValid,
		"legacy", rep.LegacyCount,
		"migrated", rep.MigratedCount,
		"issues", len(rep.Issues),
	)
	return rep, nil
}
