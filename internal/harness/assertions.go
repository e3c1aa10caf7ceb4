package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/cyclelog/internal/aggregate"
	"github.com/roach88/cyclelog/internal/migrate"
	"github.com/roach88/cyclelog/internal/store"
)

// AssertionContext provides the state assertions read.
type AssertionContext struct {
	Ctx      context.Context
	Store    *store.Store
	Migrator *migrate.Migrator
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions evaluates every assertion and returns the failure
// messages in order.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(a, actx)
	case AssertGapless:
		return assertGapless(a, actx)
	case AssertSnapshotField, AssertActorMetric, AssertEntityMetric:
		return assertSnapshotValue(a, actx)
	case AssertVerify:
		return assertVerify(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertEventCount(a Assertion, actx *AssertionContext) error {
	n, err := actx.Store.CountEvents(actx.Ctx, a.Partition)
	if err != nil {
		return err
	}
	if n != int64(*a.Count) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d events in partition %d", *a.Count, a.Partition),
			Actual:   fmt.Sprintf("%d events", n),
		}
	}
	return nil
}

func assertGapless(a Assertion, actx *AssertionContext) error {
	events, err := actx.Store.ReadPartition(actx.Ctx, a.Partition)
	if err != nil {
		return err
	}
	for i, e := range events {
		if e.Sequence != int64(i+1) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("sequence %d at position %d of partition %d", i+1, i, a.Partition),
				Actual:   fmt.Sprintf("sequence %d", e.Sequence),
			}
		}
	}
	return nil
}

func assertSnapshotValue(a Assertion, actx *AssertionContext) error {
	snap, err := actx.Store.GetSnapshot(actx.Ctx, a.Partition)
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("snapshot of partition %d", a.Partition),
			Actual:   "no snapshot",
		}
	}
	if err != nil {
		return err
	}

	var (
		target any
		label  string
	)
	switch a.Type {
	case AssertSnapshotField:
		target, label = snap, fmt.Sprintf("partition %d", a.Partition)
	case AssertActorMetric:
		m, ok := findActor(snap, a.Actor)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("metrics for actor %d", a.Actor), Actual: "actor not in snapshot"}
		}
		target, label = m, fmt.Sprintf("actor %d", a.Actor)
	case AssertEntityMetric:
		m, ok := findEntity(snap, a.Entity)
		if !ok {
			return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("metrics for entity %d", a.Entity), Actual: "entity not in snapshot"}
		}
		target, label = m, fmt.Sprintf("entity %d", a.Entity)
	}

	fields, err := toFields(target)
	if err != nil {
		return err
	}
	actual, ok := fields[a.Field]
	if !ok {
		return fmt.Errorf("unknown field %q", a.Field)
	}
	if !matchValue(actual, a.Value) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s %s = %v", label, a.Field, a.Value),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

func assertVerify(a Assertion, actx *AssertionContext) error {
	report, err := actx.Migrator.Verify(actx.Ctx)
	if err != nil {
		return err
	}
	if want := a.Value.(bool); report.IsValid != want {
		issues := make([]string, len(report.Issues))
		for i, v := range report.Issues {
			issues[i] = string(v.Code)
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("isValid = %t", want),
			Actual:   fmt.Sprintf("isValid = %t [%s]", report.IsValid, strings.Join(issues, ", ")),
		}
	}
	return nil
}

func findActor(snap aggregate.Snapshot, id int64) (aggregate.ActorMetrics, bool) {
	for _, m := range snap.ActorMetrics {
		if m.ActorID == id {
			return m, true
		}
	}
	return aggregate.ActorMetrics{}, false
}

func findEntity(snap aggregate.Snapshot, id int64) (aggregate.EntityMetrics, bool) {
	for _, m := range snap.EntityMetrics {
		if m.EntityID == id {
			return m, true
		}
	}
	return aggregate.EntityMetrics{}, false
}

// toFields flattens v's top level by JSON field name.
func toFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// matchValue compares a JSON-decoded value with a YAML-decoded one by their
// printed form, so 130 (int) matches json.Number("130").
func matchValue(actual, expected any) bool {
	return fmt.Sprint(actual) == fmt.Sprint(expected)
}
