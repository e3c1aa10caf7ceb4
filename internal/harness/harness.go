package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
	"github.com/roach88/cyclelog/internal/migrate"
	"github.com/roach88/cyclelog/internal/recorder"
	"github.com/roach88/cyclelog/internal/sequence"
	"github.com/roach88/cyclelog/internal/snapshot"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/telemetry"
	"github.com/roach88/cyclelog/internal/testutil"
)

// ErrIncompletePartition is the expect_error code for snapshot requests on
// partitions that lack a marker.
const ErrIncompletePartition = "INCOMPLETE_PARTITION"

// Harness wires the log components over one isolated store.
type Harness struct {
	store    *store.Store
	recorder *recorder.Recorder
	builder  *snapshot.Builder
	migrator *migrate.Migrator
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Unexpected step
// outcomes and failed assertions are reported in the result; the returned
// error is reserved for infrastructure failures.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := newHarness(st, scenario.IncludeLegacy)
	ctx := context.Background()

	if len(scenario.Legacy) > 0 {
		fx := legacy.Fixture{Matches: scenario.Legacy}
		if _, err := st.InsertLegacyMatches(ctx, fx.ToMatches()); err != nil {
			return nil, fmt.Errorf("failed to seed legacy rows: %w", err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		trace, err := h.execute(ctx, i, step)
		code := errorCode(err)
		trace.Error = code

		switch {
		case step.ExpectError != "" && code != step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d]: expected error %s, got %s", i, step.ExpectError, describe(err)))
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %v", i, err))
		}
		result.Trace = append(result.Trace, trace)
	}

	actx := &AssertionContext{Ctx: ctx, Store: st, Migrator: h.migrator}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, includeLegacy bool) *Harness {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewDiscard()
	clock := testutil.NewDeterministicClock(testutil.DefaultEpoch, time.Second)

	alloc := sequence.New(st, sequence.WithLogger(logger), sequence.WithMetrics(metrics))
	rec := recorder.New(st, alloc,
		recorder.WithIDGenerator(testutil.NewSequentialIDGenerator("evt")),
		recorder.WithClock(clock.Now),
		recorder.WithLogger(logger),
		recorder.WithMetrics(metrics),
	)
	return &Harness{
		store:    st,
		recorder: rec,
		builder: snapshot.New(st,
			snapshot.WithLegacyFold(includeLegacy),
			snapshot.WithClock(clock.Now),
			snapshot.WithLogger(logger),
			snapshot.WithMetrics(metrics),
		),
		migrator: migrate.New(st, rec, migrate.WithLogger(logger), migrate.WithMetrics(metrics)),
	}
}

func (h *Harness) execute(ctx context.Context, index int, step Step) (TraceEvent, error) {
	trace := TraceEvent{Step: index}
	switch {
	case step.Append != nil:
		trace.Action = ActionAppend
		trace.Partition = step.Append.Partition
		trace.Types = []string{step.Append.Type}
		d, err := step.Append.Draft()
		if err != nil {
			return trace, err
		}
		e, err := h.recorder.Append(ctx, step.Append.Partition, d.Type, d.Payload, d.Options)
		if err != nil {
			return trace, err
		}
		trace.Sequences = []int64{e.Sequence}
		return trace, nil

	case step.AppendBatch != nil:
		trace.Action = ActionAppendBatch
		trace.Partition = step.AppendBatch.Partition
		for _, spec := range step.AppendBatch.Events {
			trace.Types = append(trace.Types, spec.Type)
		}
		drafts, err := recorder.SpecsToDrafts(step.AppendBatch.Events)
		if err != nil {
			return trace, err
		}
		events, err := h.recorder.AppendBatch(ctx, step.AppendBatch.Partition, drafts)
		if err != nil {
			return trace, err
		}
		for _, e := range events {
			trace.Sequences = append(trace.Sequences, e.Sequence)
		}
		return trace, nil

	case step.Snapshot != nil:
		trace.Action = ActionSnapshot
		trace.Partition = step.Snapshot.Partition
		_, err := h.builder.CreateSnapshot(ctx, step.Snapshot.Partition)
		return trace, err

	case step.Migrate != nil:
		trace.Action = ActionMigrate
		res, err := h.migrator.Migrate(ctx, migrate.Options{
			DryRun:    step.Migrate.DryRun,
			BatchSize: step.Migrate.BatchSize,
		})
		if err != nil {
			return trace, err
		}
		trace.Migration = &MigrationTrace{
			Total:    res.Total,
			Migrated: res.Migrated,
			Skipped:  res.Skipped,
			Errors:   len(res.Errors),
			DryRun:   res.DryRun,
		}
		return trace, nil
	}
	return trace, errors.New("step has no action")
}

// errorCode maps a step error to its expect_error code.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if ve, ok := event.AsValidation(err); ok {
		return string(ve.Code)
	}
	if snapshot.IsIncomplete(err) {
		return ErrIncompletePartition
	}
	return "ERROR"
}

func describe(err error) string {
	if err == nil {
		return "no error"
	}
	return fmt.Sprintf("%s (%v)", errorCode(err), err)
}
