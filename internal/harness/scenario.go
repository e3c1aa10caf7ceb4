package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cyclelog/internal/legacy"
	"github.com/roach88/cyclelog/internal/recorder"
)

// Scenario defines a conformance test scenario: legacy rows to seed, steps
// to execute against the log, and assertions on the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IncludeLegacy folds unmigrated legacy rows into snapshots.
	IncludeLegacy bool `yaml:"include_legacy,omitempty"`

	// Legacy rows inserted before the first step.
	Legacy []legacy.FixtureMatch `yaml:"legacy,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step performs exactly one action.
type Step struct {
	Append      *AppendStep   `yaml:"append,omitempty"`
	AppendBatch *BatchStep    `yaml:"append_batch,omitempty"`
	Snapshot    *SnapshotStep `yaml:"snapshot,omitempty"`
	Migrate     *MigrateStep  `yaml:"migrate,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// AppendStep appends one event.
type AppendStep struct {
	Partition          int64 `yaml:"partition"`
	recorder.DraftSpec `yaml:",inline"`
}

// BatchStep appends events atomically.
type BatchStep struct {
	Partition int64                `yaml:"partition"`
	Events    []recorder.DraftSpec `yaml:"events"`
}

// SnapshotStep creates a partition snapshot.
type SnapshotStep struct {
	Partition int64 `yaml:"partition"`
}

// MigrateStep runs the legacy migrator.
type MigrateStep struct {
	DryRun    bool `yaml:"dry_run,omitempty"`
	BatchSize int  `yaml:"batch_size,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Partition int64 `yaml:"partition,omitempty"`
	Actor     int64 `yaml:"actor,omitempty"`
	Entity    int64 `yaml:"entity,omitempty"`

	// Field is the JSON name of a snapshot or metrics field.
	Field string `yaml:"field,omitempty"`

	// Value is the expected field value (or isValid for verify).
	Value any `yaml:"value,omitempty"`

	// Count is the expected number of events (event_count).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount    = "event_count"
	AssertGapless       = "gapless"
	AssertSnapshotField = "snapshot_field"
	AssertActorMetric   = "actor_metric"
	AssertEntityMetric  = "entity_metric"
	AssertVerify        = "verify"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one of append, append_batch, snapshot, migrate is required, got %d", i, n)
		}
		if step.Append != nil && step.Append.Type == "" {
			return fmt.Errorf("steps[%d].append: type is required", i)
		}
		if step.AppendBatch != nil && len(step.AppendBatch.Events) == 0 {
			return fmt.Errorf("steps[%d].append_batch: events is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Append != nil, s.AppendBatch != nil, s.Snapshot != nil, s.Migrate != nil} {
		if set {
			n++
		}
	}
	return n
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for event_count", index)
		}
	case AssertGapless:
	case AssertSnapshotField:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for snapshot_field", index)
		}
	case AssertActorMetric:
		if a.Actor == 0 || a.Field == "" {
			return fmt.Errorf("assertions[%d]: actor and field are required for actor_metric", index)
		}
	case AssertEntityMetric:
		if a.Entity == 0 || a.Field == "" {
			return fmt.Errorf("assertions[%d]: entity and field are required for entity_metric", index)
		}
	case AssertVerify:
		if _, ok := a.Value.(bool); !ok {
			return fmt.Errorf("assertions[%d]: boolean value is required for verify", index)
		}
		return nil
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Partition <= 0 {
		return fmt.Errorf("assertions[%d]: partition is required for %s", index, a.Type)
	}
	if a.Type != AssertEventCount && a.Type != AssertGapless && a.Value == nil {
		return fmt.Errorf("assertions[%d]: value is required for %s", index, a.Type)
	}
	return nil
}
