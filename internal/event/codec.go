package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type decodeFunc func(data []byte) (Payload, error)

// registry maps each known type to its strict payload decoder.
var registry = map[Type]decodeFunc{
	TypeCycleStart:         decodeAs[CycleStart],
	TypeCycleComplete:      decodeAs[CycleComplete],
	TypeStepComplete:       decodeAs[StepComplete],
	TypeMatchOutcome:       decodeAs[MatchOutcome],
	TypeMatchCompleted:     decodeAs[MatchCompleted],
	TypePassiveIncome:      decodeAs[PassiveIncome],
	TypeOperatingCosts:     decodeAs[OperatingCosts],
	TypeEquipmentPurchased: decodeAs[EquipmentPurchased],
	TypeFacilityPurchased:  decodeAs[FacilityPurchased],
	TypeEntityPurchased:    decodeAs[EntityPurchased],
	TypeAttributeUpgraded:  decodeAs[AttributeUpgraded],
}

// EncodePayload serializes a payload to its JSON document form.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, invalid(CodeMissingPayload, "", "payload", "payload is required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return data, nil
}

// DecodePayload parses a JSON document into the payload struct for t.
//
// Decoding is strict: the document must be a JSON object, unknown fields are
// rejected, and trailing data is an error. Failures are *ValidationError.
func DecodePayload(t Type, data []byte) (Payload, error) {
	decode, ok := registry[t]
	if !ok {
		return nil, invalid(CodeUnknownType, t, "type", "unknown event type %q", t)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, invalid(CodeMissingPayload, t, "payload", "payload is required")
	}
	if trimmed[0] != '{' {
		return nil, invalid(CodeMalformedPayload, t, "payload", "payload must be a JSON object")
	}

	p, err := decode(trimmed)
	if err != nil {
		return nil, invalid(CodeMalformedPayload, t, "payload", "decode payload: %v", err)
	}
	return p, nil
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var p T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after payload object")
	}
	return p, nil
}
