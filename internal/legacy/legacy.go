package legacy

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/cyclelog/internal/event"
)

// Source is the metadata source tag stamped on converted events.
const Source = "legacy_matches"

// Match is one row of the legacy_matches table.
type Match struct {
	ID           int64
	MatchType    string
	CreatedAt    time.Time
	Participants []event.Participant
}

// Header is the part of a legacy row needed for partition assignment.
type Header struct {
	ID        int64
	CreatedAt time.Time
}

// DayBucket describes one synthetic partition.
type DayBucket struct {
	PartitionID int64
	Day         string
	Count       int
}

const dayLayout = "2006-01-02"

// AssignPartitions buckets headers by the UTC day they were created on and
// numbers the buckets chronologically from 1. It returns the partition for
// every legacy id and the buckets in partition order.
func AssignPartitions(headers []Header) (map[int64]int64, []DayBucket) {
	sorted := make([]Header, len(headers))
	copy(sorted, headers)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].CreatedAt, sorted[j].CreatedAt
		if !a.Equal(b) {
			return a.Before(b)
		}
		return sorted[i].ID < sorted[j].ID
	})

	assigned := make(map[int64]int64, len(sorted))
	var buckets []DayBucket
	for _, h := range sorted {
		day := h.CreatedAt.UTC().Format(dayLayout)
		if len(buckets) == 0 || buckets[len(buckets)-1].Day != day {
			buckets = append(buckets, DayBucket{
				PartitionID: int64(len(buckets) + 1),
				Day:         day,
			})
		}
		b := &buckets[len(buckets)-1]
		b.Count++
		assigned[h.ID] = b.PartitionID
	}
	return assigned, buckets
}

// ToEvent converts m into a validated match_completed event for partition.
// The event carries the record's creation time and its id as both the match
// reference and the legacyMatchId metadata key.
func ToEvent(m Match, partitionID int64) (event.Event, error) {
	if m.ID <= 0 {
		return event.Event{}, fmt.Errorf("convert legacy match: invalid id %d", m.ID)
	}
	participants := make([]event.Participant, len(m.Participants))
	copy(participants, m.Participants)

	e := event.Event{
		PartitionID: partitionID,
		Type:        event.TypeMatchCompleted,
		Timestamp:   m.CreatedAt,
		MatchID:     m.ID,
		Payload: event.MatchCompleted{
			LegacyMatchID: m.ID,
			MatchType:     m.MatchType,
			Participants:  participants,
		},
		Metadata: event.Metadata{
			event.MetaLegacyMatchID: m.ID,
			event.MetaSource:        Source,
		},
	}
	out, err := event.ValidateForAppend(e)
	if err != nil {
		return event.Event{}, fmt.Errorf("convert legacy match %d: %w", m.ID, err)
	}
	return out, nil
}
