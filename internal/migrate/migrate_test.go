package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
	"github.com/roach88/cyclelog/internal/recorder"
	"github.com/roach88/cyclelog/internal/sequence"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/telemetry"
	tu "github.com/roach88/cyclelog/internal/testutil"
)

var day0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store    *store.Store
	rec      *recorder.Recorder
	migrator *Migrator
	metrics  *telemetry.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	metrics := telemetry.NewDiscard()
	rec := recorder.New(s, sequence.New(s),
		recorder.WithMetrics(metrics),
		recorder.WithIDGenerator(tu.NewSequentialIDGenerator("evt")),
	)
	return &fixture{
		store:    s,
		rec:      rec,
		migrator: New(s, rec, WithMetrics(metrics)),
		metrics:  metrics,
	}
}

func duel(id int64, at time.Time) legacy.Match {
	return legacy.Match{
		ID:        id,
		MatchType: "league",
		CreatedAt: at,
		Participants: []event.Participant{
			{ActorID: 1, EntityID: 10, MatchOutcome: event.MatchOutcome{Result: event.ResultWin, DamageDealt: 30, CreditsEarned: 100}},
			{ActorID: 2, EntityID: 20, MatchOutcome: event.MatchOutcome{Result: event.ResultLoss, DamageDealt: 10, CreditsEarned: 20}},
		},
	}
}

// seedDays inserts n duels spread round-robin over days consecutive UTC days.
func (f *fixture) seedDays(t *testing.T, n, days int) {
	t.Helper()
	matches := make([]legacy.Match, n)
	for i := range matches {
		at := day0.Add(time.Duration(i%days)*24*time.Hour + time.Duration(i)*time.Minute)
		matches[i] = duel(int64(i+1), at)
	}
	_, err := f.store.InsertLegacyMatches(context.Background(), matches)
	require.NoError(t, err)
}

func TestMigrate_BackfillsByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 37, 3)

	res, err := f.migrator.Migrate(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 37, res.Total)
	assert.Equal(t, 37, res.Migrated)
	assert.Equal(t, 0, res.Skipped)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Partitions, 3)

	wantCounts := map[int64]int64{1: 13, 2: 12, 3: 12}
	for partition, want := range wantCounts {
		events, err := f.store.ReadPartition(ctx, partition)
		require.NoError(t, err)
		require.Len(t, events, int(want), "partition %d", partition)
		for i, e := range events {
			assert.Equal(t, int64(i+1), e.Sequence)
			assert.Equal(t, event.TypeMatchCompleted, e.Type)
			src, _ := e.Metadata.String(event.MetaSource)
			assert.Equal(t, legacy.Source, src)
		}
	}
	n, err := f.store.CountEvents(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 37.0, testutil.ToFloat64(f.metrics.MigrationRecords.WithLabelValues("migrated")))
}

func TestMigrate_RerunSkipsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 37, 3)

	_, err := f.migrator.Migrate(ctx, Options{BatchSize: 10})
	require.NoError(t, err)

	res, err := f.migrator.Migrate(ctx, Options{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 37, res.Total)
	assert.Equal(t, 0, res.Migrated)
	assert.Equal(t, 37, res.Skipped)

	rep, err := f.migrator.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, rep.IsValid, "issues: %+v", rep.Issues)
	assert.Equal(t, int64(37), rep.LegacyCount)
	assert.Equal(t, int64(37), rep.MigratedCount)
}

func TestMigrate_SmallPagesCoverEveryRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 23, 2)

	res, err := f.migrator.Migrate(ctx, Options{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 23, res.Total)
	assert.Equal(t, 23, res.Migrated)

	rep, err := f.migrator.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, rep.IsValid)
}

func TestMigrate_ResumesAfterPartialRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 10, 1)

	// Convert the first three by hand, as an interrupted run would have.
	page, err := f.store.ListLegacyMatchesAfter(ctx, nil, 3)
	require.NoError(t, err)
	for _, m := range page {
		e, err := legacy.ToEvent(m, 1)
		require.NoError(t, err)
		_, err = f.rec.Append(ctx, 1, e.Type, e.Payload, recorder.Options{MatchID: e.MatchID, Metadata: e.Metadata, Timestamp: e.Timestamp})
		require.NoError(t, err)
	}

	res, err := f.migrator.Migrate(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Migrated)
	assert.Equal(t, 3, res.Skipped)

	last, err := f.store.MaxSequence(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), last)
}

func TestMigrate_DryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 12, 2)

	res, err := f.migrator.Migrate(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 12, res.Migrated)

	for _, p := range []int64{1, 2} {
		n, err := f.store.CountEvents(ctx, p)
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	rep, err := f.migrator.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, rep.IsValid)
	assert.Equal(t, int64(0), rep.MigratedCount)
}

func TestMigrate_RecordErrorsDoNotStopTheRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := duel(2, day0.Add(time.Minute))
	broken.Participants = nil
	_, err := f.store.InsertLegacyMatches(ctx, []legacy.Match{duel(1, day0), broken, duel(3, day0.Add(2*time.Minute))})
	require.NoError(t, err)

	res, err := f.migrator.Migrate(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Migrated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, int64(2), res.Errors[0].LegacyID)

	rep, err := f.migrator.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, rep.IsValid)
	assert.Contains(t, rep.Issues, IntegrityViolation{
		Code:     CodeMissing,
		LegacyID: 2,
		Message:  "legacy match 2 has no converted event",
	})
}

func TestMigrate_SharesSequencesWithLiveTraffic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 4, 1)

	_, err := f.rec.Append(ctx, 1, event.TypePassiveIncome, event.PassiveIncome{Streaming: 1}, recorder.Options{ActorID: 9})
	require.NoError(t, err)

	_, err = f.migrator.Migrate(ctx, Options{})
	require.NoError(t, err)

	events, err := f.store.ReadPartition(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Sequence)
	}
}

func TestVerify_DetectsDuplicatesAndOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedDays(t, 3, 1)

	_, err := f.migrator.Migrate(ctx, Options{})
	require.NoError(t, err)

	// Convert legacy 2 a second time, and reference a legacy id that
	// does not exist.
	for _, id := range []int64{2, 404} {
		_, err = f.rec.Append(ctx, 1, event.TypeMatchCompleted, duelPayload(id), recorder.Options{
			MatchID:  id,
			Metadata: event.Metadata{event.MetaLegacyMatchID: id, event.MetaSource: legacy.Source},
		})
		require.NoError(t, err)
	}

	rep, err := f.migrator.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, rep.IsValid)
	assert.Equal(t, int64(3), rep.LegacyCount)
	assert.Equal(t, int64(5), rep.MigratedCount)

	codes := make(map[ViolationCode]IntegrityViolation)
	for _, v := range rep.Issues {
		codes[v.Code] = v
	}
	assert.Contains(t, codes, CodeCountMismatch)
	assert.Equal(t, int64(404), codes[CodeOrphan].LegacyID)
	assert.Equal(t, int64(2), codes[CodeDuplicate].LegacyID)
	assert.Equal(t, int64(2), codes[CodeDuplicate].Count)
	assert.NotContains(t, codes, CodeMissing)
}

func TestVerify_EmptyIsValid(t *testing.T) {
	f := newFixture(t)

	rep, err := f.migrator.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.IsValid)
	assert.NotNil(t, rep.Issues)
}

func duelPayload(id int64) event.MatchCompleted {
	m := duel(id, day0)
	return event.MatchCompleted{LegacyMatchID: id, MatchType: m.MatchType, Participants: m.Participants}
}
