package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"golang.org/x/text/unicode/norm"
)

// Metadata holds open-ended debug and provenance data for an event.
//
// Allowed values are strings, booleans, integers, and nested lists and
// objects of those. Floats with a fractional part and nulls are rejected so
// that the stored document is deterministic.
type Metadata map[string]any

// Well-known metadata keys.
const (
	MetaLegacyMatchID = "legacyMatchId"
	MetaSource        = "source"
)

// Canonicalize returns a deep copy of m with NFC-normalized strings and
// integers widened to int64. A nil or empty map canonicalizes to nil.
func (m Metadata) Canonicalize() (Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out, err := canonicalObject(m)
	if err != nil {
		return nil, &ValidationError{
			Code:    CodeInvalidMetadata,
			Field:   "metadata",
			Message: err.Error(),
		}
	}
	return out, nil
}

// Int64 returns the integer stored under key.
func (m Metadata) Int64(key string) (int64, bool) {
	switch v := m[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// String returns the string stored under key.
func (m Metadata) String(key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

// MarshalMetadata encodes canonical metadata; nil encodes as nil.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(m)); err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalMetadata decodes a stored metadata document.
func UnmarshalMetadata(data []byte) (Metadata, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return Metadata(raw).Canonicalize()
}

func canonicalObject(m map[string]any) (Metadata, error) {
	out := make(Metadata, len(m))
	for k, v := range m {
		cv, err := canonicalValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[norm.NFC.String(k)] = cv
	}
	return out, nil
}

func canonicalValue(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not allowed")
	case string:
		return norm.NFC.String(val), nil
	case bool:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case uint32:
		return int64(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s is not an integer", val)
		}
		return n, nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || math.Abs(val) > 1<<53 {
			return nil, fmt.Errorf("float %v is not allowed", val)
		}
		return int64(val), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			cv, err := canonicalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	case map[string]any:
		return canonicalObject(val)
	case Metadata:
		return canonicalObject(val)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
