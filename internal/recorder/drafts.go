package recorder

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cyclelog/internal/event"
)

// DraftSpec is the YAML form of one event to append. Payload and metadata
// are free-form maps; the payload is decoded strictly against its type.
type DraftSpec struct {
	Type     string         `yaml:"type"`
	Payload  map[string]any `yaml:"payload"`
	ActorID  int64          `yaml:"actor,omitempty"`
	EntityID int64          `yaml:"entity,omitempty"`
	MatchID  int64          `yaml:"match,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
	At       time.Time      `yaml:"at,omitempty"`
}

// DraftFile is a YAML document holding a batch of drafts.
type DraftFile struct {
	Events []DraftSpec `yaml:"events"`
}

// Draft decodes the payload and returns the recorder Draft.
func (s DraftSpec) Draft() (Draft, error) {
	t := event.Type(s.Type)
	payload := s.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Draft{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	p, err := event.DecodePayload(t, raw)
	if err != nil {
		return Draft{}, err
	}
	return Draft{
		Type:    t,
		Payload: p,
		Options: Options{
			ActorID:   s.ActorID,
			EntityID:  s.EntityID,
			MatchID:   s.MatchID,
			Metadata:  event.Metadata(s.Metadata),
			Timestamp: s.At,
		},
	}, nil
}

// DecodeDrafts parses a DraftFile document and converts every entry.
func DecodeDrafts(r io.Reader) ([]Draft, error) {
	var f DraftFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse drafts: %w", err)
	}
	return SpecsToDrafts(f.Events)
}

// SpecsToDrafts converts specs in order, reporting the index of the first
// failure.
func SpecsToDrafts(specs []DraftSpec) ([]Draft, error) {
	drafts := make([]Draft, 0, len(specs))
	for i, s := range specs {
		d, err := s.Draft()
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}
