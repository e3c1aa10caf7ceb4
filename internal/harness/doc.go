// Package harness runs YAML scenarios against a fresh event log.
//
// # Scenario Format
//
//	name: duel_cycle
//	description: "What this scenario validates"
//	include_legacy: false
//	legacy:
//	  - id: 101
//	    match_type: league
//	    created_at: 2026-03-01T09:15:00Z
//	    participants: [...]
//	steps:
//	  - append:
//	      partition: 1
//	      type: cycle_start
//	      payload: {triggerType: manual}
//	  - append_batch:
//	      partition: 1
//	      events:
//	        - type: passive_income
//	          actor: 7
//	          payload: {merchandising: 100, streaming: 20}
//	  - snapshot: {partition: 1}
//	    expect_error: INCOMPLETE_PARTITION
//	  - migrate: {dry_run: false, batch_size: 50}
//	assertions:
//	  - type: event_count
//	    partition: 1
//	    count: 3
//	  - type: actor_metric
//	    partition: 1
//	    actor: 7
//	    field: netProfit
//	    value: 120
//
// Each step performs exactly one action. expect_error names the error the
// step must fail with: a validation code such as INVALID_FIELD, or
// INCOMPLETE_PARTITION. A step without expect_error must succeed.
//
// # Assertion Types
//
//   - event_count: the partition holds exactly count events
//   - gapless: the partition's sequence numbers are 1..N
//   - snapshot_field: a top-level snapshot field equals value
//   - actor_metric: a field of one actor's metrics equals value
//   - entity_metric: a field of one entity's metrics equals value
//   - verify: the legacy integrity report's isValid equals value
//
// # Deterministic Testing
//
// Every scenario runs in its own in-memory SQLite database with a
// deterministic clock and sequential event ids, so the trace is identical
// across runs and can be compared against a golden file.
package harness
