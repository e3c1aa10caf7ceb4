package legacy

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cyclelog/internal/event"
)

// Fixture is the YAML form of a set of legacy rows, used to seed the
// legacy table for migration runs and scenarios.
type Fixture struct {
	Matches []FixtureMatch `yaml:"matches"`
}

// FixtureMatch is one legacy row in YAML form.
type FixtureMatch struct {
	ID           int64                `yaml:"id"`
	MatchType    string               `yaml:"match_type"`
	CreatedAt    time.Time            `yaml:"created_at"`
	Participants []FixtureParticipant `yaml:"participants"`
}

// FixtureParticipant is one participant of a legacy row in YAML form.
type FixtureParticipant struct {
	ActorID          int64  `yaml:"actor"`
	EntityID         int64  `yaml:"entity"`
	Team             int    `yaml:"team"`
	OpponentEntityID int64  `yaml:"opponent"`
	Result           string `yaml:"result"`
	DamageDealt      int64  `yaml:"damage_dealt"`
	CreditsEarned    int64  `yaml:"credits"`
	ReputationEarned int64  `yaml:"reputation"`
	RepairCost       int64  `yaml:"repair_cost"`
	Destroyed        bool   `yaml:"destroyed"`
}

// LoadFixture reads a legacy fixture file.
func LoadFixture(path string) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open legacy fixture: %w", err)
	}
	defer f.Close()
	return DecodeFixture(f)
}

// DecodeFixture parses a legacy fixture document.
func DecodeFixture(r io.Reader) ([]Match, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("parse legacy fixture: %w", err)
	}
	return fx.ToMatches(), nil
}

// ToMatches converts the fixture rows to legacy matches.
func (fx Fixture) ToMatches() []Match {
	out := make([]Match, 0, len(fx.Matches))
	for _, fm := range fx.Matches {
		m := Match{
			ID:           fm.ID,
			MatchType:    fm.MatchType,
			CreatedAt:    fm.CreatedAt.UTC(),
			Participants: make([]event.Participant, 0, len(fm.Participants)),
		}
		for _, fp := range fm.Participants {
			m.Participants = append(m.Participants, event.Participant{
				ActorID:  fp.ActorID,
				EntityID: fp.EntityID,
				MatchOutcome: event.MatchOutcome{
					Result:           event.Result(fp.Result),
					MatchType:        fm.MatchType,
					Team:             fp.Team,
					OpponentEntityID: fp.OpponentEntityID,
					DamageDealt:      fp.DamageDealt,
					CreditsEarned:    fp.CreditsEarned,
					ReputationEarned: fp.ReputationEarned,
					RepairCost:       fp.RepairCost,
					Destroyed:        fp.Destroyed,
				},
			})
		}
		out = append(out, m)
	}
	return out
}
