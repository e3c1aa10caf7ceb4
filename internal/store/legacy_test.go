package store

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
)

func seedLegacy(t *testing.T, s *Store, matches ...legacy.Match) {
	t.Helper()
	if _, err := s.InsertLegacyMatches(context.Background(), matches); err != nil {
		t.Fatalf("InsertLegacyMatches() failed: %v", err)
	}
}

func TestInsertLegacyMatches_IgnoresExistingIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	n, err := s.InsertLegacyMatches(ctx, []legacy.Match{createLegacyMatch(1, 0), createLegacyMatch(2, time.Hour)})
	if err != nil {
		t.Fatalf("InsertLegacyMatches() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	n, err = s.InsertLegacyMatches(ctx, []legacy.Match{createLegacyMatch(2, 0), createLegacyMatch(3, 0)})
	if err != nil {
		t.Fatalf("InsertLegacyMatches() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}
}

func TestListLegacyMatchesAfter_KeysetPages(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Ids 4 and 2 share a timestamp; order must fall back to id.
	seedLegacy(t, s,
		createLegacyMatch(4, time.Minute),
		createLegacyMatch(2, time.Minute),
		createLegacyMatch(9, 0),
		createLegacyMatch(1, 2*time.Minute),
		createLegacyMatch(7, 3*time.Minute),
	)

	var (
		seen   []int64
		cursor *LegacyCursor
	)
	for {
		page, err := s.ListLegacyMatchesAfter(ctx, cursor, 2)
		if err != nil {
			t.Fatalf("ListLegacyMatchesAfter() failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, m := range page {
			seen = append(seen, m.ID)
		}
		last := page[len(page)-1]
		cursor = &LegacyCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	want := []int64{9, 2, 4, 1, 7}
	if len(seen) != len(want) {
		t.Fatalf("paged ids = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("paged ids = %v, want %v", seen, want)
		}
	}
}

func TestListLegacyHeaders(t *testing.T) {
	s := createTestStore(t)
	seedLegacy(t, s, createLegacyMatch(3, time.Hour), createLegacyMatch(8, 0))

	headers, err := s.ListLegacyHeaders(context.Background())
	if err != nil {
		t.Fatalf("ListLegacyHeaders() failed: %v", err)
	}
	if len(headers) != 2 || headers[0].ID != 8 || headers[1].ID != 3 {
		t.Fatalf("ListLegacyHeaders() = %v", headers)
	}
	if !headers[1].CreatedAt.Equal(testEpoch.Add(time.Hour)) {
		t.Errorf("CreatedAt = %v", headers[1].CreatedAt)
	}
}

func TestLegacyParticipantsRoundTrip(t *testing.T) {
	s := createTestStore(t)
	seedLegacy(t, s, createLegacyMatch(5, 0))

	page, err := s.ListLegacyMatchesAfter(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("ListLegacyMatchesAfter() failed: %v", err)
	}
	if len(page) != 1 || len(page[0].Participants) != 2 {
		t.Fatalf("page = %+v", page)
	}
	p := page[0].Participants[0]
	if p.EntityID != 10 || p.Result != event.ResultWin || p.DamageDealt != 40 {
		t.Errorf("participant = %+v", p)
	}
}

func TestConvertedLegacyIDsAndUnmigrated(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seedLegacy(t, s, createLegacyMatch(1, 0), createLegacyMatch(2, time.Minute), createLegacyMatch(3, 2*time.Hour))
	if err := s.InsertEvents(ctx, []event.Event{createConversionEvent(1, 1, 2)}); err != nil {
		t.Fatalf("InsertEvents() failed: %v", err)
	}

	converted, err := s.ConvertedLegacyIDs(ctx, []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("ConvertedLegacyIDs() failed: %v", err)
	}
	if len(converted) != 1 || !converted[2] {
		t.Errorf("ConvertedLegacyIDs() = %v, want {2}", converted)
	}

	open, err := s.UnmigratedLegacyMatchesBetween(ctx, testEpoch, testEpoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("UnmigratedLegacyMatchesBetween() failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != 1 {
		t.Errorf("UnmigratedLegacyMatchesBetween() = %v, want [1]", open)
	}
}

func TestIntegrityQueries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seedLegacy(t, s, createLegacyMatch(1, 0), createLegacyMatch(2, 0), createLegacyMatch(3, 0))
	batch := []event.Event{
		createConversionEvent(1, 1, 1),
		createConversionEvent(1, 2, 1), // duplicate of 1
		createConversionEvent(1, 3, 2),
		createConversionEvent(1, 4, 77), // orphan
		createTestEvent(1, 5),           // not a conversion
	}
	if err := s.InsertEvents(ctx, batch); err != nil {
		t.Fatalf("InsertEvents() failed: %v", err)
	}

	counts, err := s.CountConversions(ctx)
	if err != nil {
		t.Fatalf("CountConversions() failed: %v", err)
	}
	if counts != (ConversionCounts{LegacyRows: 3, ConvertedEvents: 4}) {
		t.Errorf("CountConversions() = %+v", counts)
	}

	missing, err := s.MissingConversions(ctx)
	if err != nil {
		t.Fatalf("MissingConversions() failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != 3 {
		t.Errorf("MissingConversions() = %v, want [3]", missing)
	}

	orphans, err := s.OrphanConversions(ctx)
	if err != nil {
		t.Fatalf("OrphanConversions() failed: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != 77 {
		t.Errorf("OrphanConversions() = %v, want [77]", orphans)
	}

	dups, err := s.DuplicateConversions(ctx)
	if err != nil {
		t.Fatalf("DuplicateConversions() failed: %v", err)
	}
	if len(dups) != 1 || dups[0] != (DuplicateConversion{LegacyID: 1, Count: 2}) {
		t.Errorf("DuplicateConversions() = %v, want [{1 2}]", dups)
	}
}
