package harness

// Step actions recorded in the trace.
const (
	ActionAppend      = "append"
	ActionAppendBatch = "append_batch"
	ActionSnapshot    = "snapshot"
	ActionMigrate     = "migrate"
)

// TraceEvent records the outcome of one scenario step.
type TraceEvent struct {
	Step      int             `json:"step"`
	Action    string          `json:"action"`
	Partition int64           `json:"partition,omitempty"`
	Types     []string        `json:"types,omitempty"`
	Sequences []int64         `json:"sequences,omitempty"`
	Migration *MigrationTrace `json:"migration,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// MigrationTrace summarizes a migrate step.
type MigrationTrace struct {
	Total    int  `json:"total"`
	Migrated int  `json:"migrated"`
	Skipped  int  `json:"skipped"`
	Errors   int  `json:"errors"`
	DryRun   bool `json:"dryRun,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace holds one entry per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors describes each failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
