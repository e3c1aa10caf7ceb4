package event

import (
	"fmt"
	"reflect"
	"time"
)

type refSet struct {
	actor, entity, match bool
}

// requiredRefs lists the references each type must carry.
var requiredRefs = map[Type]refSet{
	TypeMatchOutcome:       {actor: true, entity: true, match: true},
	TypeMatchCompleted:     {match: true},
	TypePassiveIncome:      {actor: true},
	TypeOperatingCosts:     {actor: true},
	TypeEquipmentPurchased: {actor: true},
	TypeFacilityPurchased:  {actor: true},
	TypeEntityPurchased:    {actor: true},
	TypeAttributeUpgraded:  {actor: true, entity: true},
}

// ValidateForAppend checks e and returns it normalized for storage:
// canonical metadata and a UTC timestamp truncated to milliseconds.
// Sequence and ID are left untouched.
func ValidateForAppend(e Event) (Event, error) {
	if e.PartitionID <= 0 {
		return Event{}, withPartition(invalid(CodeInvalidPartition, e.Type, "partitionId",
			"partition id must be positive, got %d", e.PartitionID), e.PartitionID)
	}
	if !e.Type.Known() {
		return Event{}, withPartition(invalid(CodeUnknownType, e.Type, "type",
			"unknown event type %q", e.Type), e.PartitionID)
	}
	e.Payload = derefPayload(e.Payload)
	if e.Payload == nil {
		return Event{}, withPartition(invalid(CodeMissingPayload, e.Type, "payload",
			"payload is required"), e.PartitionID)
	}
	if got := e.Payload.EventType(); got != e.Type {
		return Event{}, withPartition(invalid(CodeTypeMismatch, e.Type, "payload",
			"payload is a %s payload", got), e.PartitionID)
	}
	if err := checkRefs(e); err != nil {
		return Event{}, withPartition(err, e.PartitionID)
	}

	doc, err := EncodePayload(e.Payload)
	if err != nil {
		return Event{}, withPartition(invalid(CodeMalformedPayload, e.Type, "payload", "%v", err), e.PartitionID)
	}
	s, err := loadSchema()
	if err != nil {
		return Event{}, err
	}
	if verr := s.check(e.Type, doc); verr != nil {
		return Event{}, withPartition(verr, e.PartitionID)
	}

	meta, err := e.Metadata.Canonicalize()
	if err != nil {
		if ve, ok := AsValidation(err); ok {
			ve.Type = e.Type
			return Event{}, withPartition(ve, e.PartitionID)
		}
		return Event{}, err
	}
	e.Metadata = meta

	if !e.Timestamp.IsZero() {
		e.Timestamp = NormalizeTime(e.Timestamp)
	}
	return e, nil
}

// NormalizeTime converts t to the stored precision: UTC milliseconds.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func checkRefs(e Event) *ValidationError {
	refs := [...]struct {
		name     string
		value    int64
		required bool
	}{
		{"actorId", e.ActorID, requiredRefs[e.Type].actor},
		{"entityId", e.EntityID, requiredRefs[e.Type].entity},
		{"matchId", e.MatchID, requiredRefs[e.Type].match},
	}
	for _, r := range refs {
		if r.value < 0 {
			return invalid(CodeMissingRef, e.Type, r.name, "reference must be positive, got %d", r.value)
		}
		if r.required && r.value == 0 {
			return invalid(CodeMissingRef, e.Type, r.name, "%s events require %s", e.Type, r.name)
		}
	}
	return nil
}

func withPartition(ve *ValidationError, partitionID int64) *ValidationError {
	ve.PartitionID = partitionID
	return ve
}

// String renders e for logs and CLI text output.
func (e Event) String() string {
	return fmt.Sprintf("%d/%d %s", e.PartitionID, e.Sequence, e.Type)
}

// derefPayload returns the value behind a pointer payload, or nil for a nil
// pointer. Folds and codecs switch on the value types only.
func derefPayload(p Payload) Payload {
	if p == nil {
		return nil
	}
	v := reflect.ValueOf(p)
	if v.Kind() != reflect.Pointer {
		return p
	}
	if v.IsNil() {
		return nil
	}
	if inner, ok := v.Elem().Interface().(Payload); ok {
		return inner
	}
	return p
}
