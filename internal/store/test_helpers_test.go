package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates a passive_income event with the given sequence.
func createTestEvent(partition, seq int64) event.Event {
	return event.Event{
		ID:          fmt.Sprintf("evt-%d-%d", partition, seq),
		PartitionID: partition,
		Type:        event.TypePassiveIncome,
		Sequence:    seq,
		Timestamp:   testEpoch.Add(time.Duration(seq) * time.Millisecond),
		ActorID:     1,
		Payload:     event.PassiveIncome{Merchandising: seq, Streaming: 1},
	}
}

// createConversionEvent creates a match_completed event converted from a
// legacy id.
func createConversionEvent(partition, seq, legacyID int64) event.Event {
	return event.Event{
		ID:          fmt.Sprintf("conv-%d-%d", partition, seq),
		PartitionID: partition,
		Type:        event.TypeMatchCompleted,
		Sequence:    seq,
		Timestamp:   testEpoch,
		MatchID:     legacyID,
		Payload: event.MatchCompleted{
			LegacyMatchID: legacyID,
			MatchType:     "league",
			Participants:  createTestParticipants(),
		},
		Metadata: event.Metadata{
			event.MetaLegacyMatchID: legacyID,
			event.MetaSource:        legacy.Source,
		},
	}
}

func createTestParticipants() []event.Participant {
	return []event.Participant{
		{ActorID: 1, EntityID: 10, MatchOutcome: event.MatchOutcome{Result: event.ResultWin, DamageDealt: 40}},
		{ActorID: 2, EntityID: 20, MatchOutcome: event.MatchOutcome{Result: event.ResultLoss, DamageDealt: 15}},
	}
}

// createLegacyMatch creates a legacy row created offset after testEpoch.
func createLegacyMatch(id int64, offset time.Duration) legacy.Match {
	return legacy.Match{
		ID:           id,
		MatchType:    "league",
		CreatedAt:    testEpoch.Add(offset),
		Participants: createTestParticipants(),
	}
}
