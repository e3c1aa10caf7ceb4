package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventsAppended.WithLabelValues("passive_income").Add(3)
	m.SequenceCacheMisses.Inc()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.EventsAppended.WithLabelValues("passive_income")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SequenceCacheMisses))

	// Registering twice on the same registry is a programming error.
	assert.Panics(t, func() { New(reg) })
}

func TestNewDiscard_Independent(t *testing.T) {
	a := NewDiscard()
	b := NewDiscard()
	a.SnapshotsCreated.Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SnapshotsCreated))
}

func TestWriteTextfile(t *testing.T) {
	m := NewDiscard()
	m.MigrationRecords.WithLabelValues("migrated").Add(37)

	path := filepath.Join(t.TempDir(), "cyclelog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `cyclelog_migration_records_total{outcome="migrated"} 37`))
}
