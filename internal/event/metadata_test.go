package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_Canonicalize(t *testing.T) {
	m := Metadata{
		"legacyMatchId": 12,
		"source":        "café",
		"tags":          []any{"a", float64(2)},
		"nested":        map[string]any{"ok": true},
	}
	got, err := m.Canonicalize()
	require.NoError(t, err)

	id, ok := got.Int64(MetaLegacyMatchID)
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	src, ok := got.String(MetaSource)
	require.True(t, ok)
	assert.Equal(t, "café", src, "strings are NFC-normalized")

	assert.Equal(t, []any{"a", int64(2)}, got["tags"])
}

func TestMetadata_CanonicalizeRejects(t *testing.T) {
	for name, m := range map[string]Metadata{
		"null":     {"x": nil},
		"fraction": {"x": 1.25},
		"channel":  {"x": make(chan int)},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Canonicalize()
			assert.True(t, IsValidation(err))
		})
	}
}

func TestMetadata_RoundTripKeepsIntegers(t *testing.T) {
	m, err := Metadata{"legacyMatchId": int64(9007199254740993)}.Canonicalize()
	require.NoError(t, err)

	data, err := MarshalMetadata(m)
	require.NoError(t, err)
	assert.Equal(t, `{"legacyMatchId":9007199254740993}`, string(data))

	back, err := UnmarshalMetadata(data)
	require.NoError(t, err)
	id, ok := back.Int64(MetaLegacyMatchID)
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), id)
}

func TestMetadata_Empty(t *testing.T) {
	m, err := Metadata{}.Canonicalize()
	require.NoError(t, err)
	assert.Nil(t, m)

	data, err := MarshalMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}
