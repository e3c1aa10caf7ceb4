package recorder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/event"
)

func TestDecodeDrafts(t *testing.T) {
	doc := `
events:
  - type: passive_income
    actor: 7
    payload: {merchandising: 120, streaming: 30}
    metadata: {note: weekly}
  - type: match_outcome
    actor: 7
    entity: 70
    match: 900
    at: 2026-03-01T10:00:00Z
    payload:
      result: win
      matchType: league
      team: 1
      opponentEntityId: 80
      damageDealt: 40
      creditsEarned: 500
      reputationEarned: 3
      repairCost: 25
      destroyed: false
`
	drafts, err := DecodeDrafts(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	assert.Equal(t, event.TypePassiveIncome, drafts[0].Type)
	assert.Equal(t, event.PassiveIncome{Merchandising: 120, Streaming: 30}, drafts[0].Payload)
	assert.Equal(t, int64(7), drafts[0].ActorID)
	assert.Equal(t, "weekly", drafts[0].Metadata["note"])
	assert.True(t, drafts[0].Timestamp.IsZero())

	outcome, ok := drafts[1].Payload.(event.MatchOutcome)
	require.True(t, ok)
	assert.Equal(t, event.Result("win"), outcome.Result)
	assert.Equal(t, int64(80), outcome.OpponentEntityID)
	assert.Equal(t, int64(900), drafts[1].MatchID)
	assert.True(t, drafts[1].Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeDrafts_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "events:\n  - type: passive_income\n    colour: red\n", "parse drafts"},
		{"unknown type", "events:\n  - type: bogus\n    payload: {}\n", "events[0]"},
		{"unknown payload field", "events:\n  - type: passive_income\n    payload: {merch: 1}\n", "events[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDrafts(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeDrafts_PayloadErrorIsValidation(t *testing.T) {
	_, err := DecodeDrafts(strings.NewReader("events:\n  - type: cycle_start\n    payload: {triggerType: 5, extra: true}\n"))
	require.Error(t, err)
	assert.True(t, event.IsValidation(err))
}
