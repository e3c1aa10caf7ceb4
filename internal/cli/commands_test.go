package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCycle(t *testing.T, dbPath, partition string) {
	t.Helper()
	mustRunDB(t, dbPath, "append", "--partition", partition, "--type", "cycle_start",
		"--payload", `{"triggerType":"manual"}`, "--at", "2026-03-01T00:00:00Z")
}

func completeCycle(t *testing.T, dbPath, partition string) {
	t.Helper()
	mustRunDB(t, dbPath, "append", "--partition", partition, "--type", "cycle_complete",
		"--payload", `{"totalSteps":0}`, "--at", "2026-03-01T00:10:00Z")
}

func TestAppend_Text(t *testing.T) {
	dbPath := tempDB(t)
	r := mustRunDB(t, dbPath, "append", "--partition", "3", "--type", "cycle_start",
		"--payload", `{"triggerType":"scheduled"}`)
	assert.Contains(t, r.Stdout, "appended 3/1 cycle_start")

	r = mustRunDB(t, dbPath, "append", "--partition", "3", "--type", "passive_income",
		"--actor", "7", "--payload", `{"merchandising":120,"streaming":30}`)
	assert.Contains(t, r.Stdout, "appended 3/2 passive_income")
}

func TestAppend_JSON(t *testing.T) {
	dbPath := tempDB(t)
	r := mustRunDB(t, dbPath, "--format", "json", "append", "--partition", "4",
		"--type", "passive_income", "--actor", "7",
		"--payload", `{"merchandising":120,"streaming":30}`,
		"--metadata", `{"source":"cli","attempt":2}`,
		"--at", "2026-03-01T10:00:00.123456Z")

	resp, data := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, float64(4), data["partitionId"])
	assert.Equal(t, float64(1), data["sequenceNumber"])
	assert.Equal(t, "passive_income", data["type"])
	assert.Equal(t, "2026-03-01T10:00:00.123Z", data["timestamp"])
	payload := data["payload"].(map[string]any)
	assert.Equal(t, float64(120), payload["merchandising"])
	meta := data["metadata"].(map[string]any)
	assert.Equal(t, "cli", meta["source"])
}

func TestAppend_Rejections(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{
			name: "missing actor",
			args: []string{"--type", "passive_income", "--payload", `{"merchandising":1,"streaming":1}`},
			code: "MISSING_REF",
		},
		{
			name: "unknown payload field",
			args: []string{"--type", "cycle_start", "--payload", `{"triggerType":"manual","extra":1}`},
			code: "MALFORMED_PAYLOAD",
		},
		{
			name: "unknown type",
			args: []string{"--type", "coffee_break", "--payload", `{}`},
			code: "UNKNOWN_TYPE",
		},
		{
			name: "constraint violation",
			args: []string{"--type", "cycle_start", "--payload", `{"triggerType":"whenever"}`},
			code: "INVALID_FIELD",
		},
		{
			name: "fractional metadata",
			args: []string{"--type", "cycle_start", "--payload", `{"triggerType":"manual"}`, "--metadata", `{"ratio":0.5}`},
			code: "INVALID_METADATA",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbPath := tempDB(t)
			args := append([]string{"--format", "json", "append", "--partition", "1"}, tt.args...)
			r := runDB(t, dbPath, args...)
			assert.Equal(t, ExitCommandError, r.Code)

			resp, _ := decodeEnvelope(t, r.Stdout)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)

			// Rejections consume no sequence number.
			ok := mustRunDB(t, dbPath, "append", "--partition", "1", "--type", "cycle_start",
				"--payload", `{"triggerType":"manual"}`)
			assert.Contains(t, ok.Stdout, "appended 1/1 cycle_start")
		})
	}
}

func TestAppend_BadFlags(t *testing.T) {
	dbPath := tempDB(t)

	r := runDB(t, dbPath, "append", "--partition", "1", "--type", "cycle_start")
	assert.Equal(t, ExitCommandError, r.Code)
	assert.Contains(t, r.Stderr, "required flag")

	r = runDB(t, dbPath, "append", "--partition", "1", "--type", "cycle_start",
		"--payload", `{"triggerType":"manual"}`, "--at", "yesterday")
	assert.Equal(t, ExitCommandError, r.Code)
	assert.Contains(t, r.Stderr, "invalid --at")

	r = runDB(t, dbPath, "append", "--partition", "1", "--type", "cycle_start",
		"--payload", `{"triggerType":"manual"}`, "--metadata", `[1,2]`)
	assert.Equal(t, ExitCommandError, r.Code)
	assert.Contains(t, r.Stderr, "invalid --metadata")
}

const batchFile = `events:
  - type: passive_income
    actor: 7
    payload: {merchandising: 120, streaming: 30}
  - type: operating_costs
    actor: 7
    payload:
      totalCost: 40
      breakdown:
        - {facility: gym, cost: 40}
  - type: equipment_purchased
    actor: 7
    payload: {itemName: plating, cost: 25}
`

func TestAppendBatchAndEvents(t *testing.T) {
	dbPath := tempDB(t)
	startCycle(t, dbPath, "2")

	r := mustRunDB(t, dbPath, "append-batch", "--partition", "2", "--file", writeTemp(t, "events.yaml", batchFile))
	assert.Contains(t, r.Stdout, "appended 3 event(s) to partition 2 (sequences 2..4)")

	r = mustRunDB(t, dbPath, "events", "--partition", "2")
	lines := strings.Split(strings.TrimSpace(r.Stdout), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "cycle_start")
	assert.Contains(t, lines[3], "equipment_purchased")
	assert.Contains(t, lines[3], `"itemName":"plating"`)

	r = mustRunDB(t, dbPath, "--format", "json", "events", "--partition", "2")
	_, data := decodeEnvelope(t, r.Stdout)
	events := data["events"].([]any)
	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, float64(i+1), e.(map[string]any)["sequenceNumber"])
	}

	r = mustRunDB(t, dbPath, "events")
	assert.Contains(t, r.Stdout, "partition 2: 4 event(s), max sequence 4")
}

func TestAppendBatch_AllOrNothing(t *testing.T) {
	dbPath := tempDB(t)
	bad := batchFile + "  - type: passive_income\n    payload: {merchandising: 1, streaming: 1}\n"

	r := runDB(t, dbPath, "--format", "json", "append-batch", "--partition", "2", "--file", writeTemp(t, "events.yaml", bad))
	assert.Equal(t, ExitCommandError, r.Code)
	resp, _ := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, "MISSING_REF", resp.Error.Code)

	r = mustRunDB(t, dbPath, "events", "--partition", "2")
	assert.Contains(t, r.Stdout, "No events in partition 2.")
}

func TestEvents_Empty(t *testing.T) {
	dbPath := tempDB(t)
	r := mustRunDB(t, dbPath, "events")
	assert.Contains(t, r.Stdout, "No partitions found.")

	r = mustRunDB(t, dbPath, "--format", "json", "events")
	resp, _ := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, []any{}, resp.Data)
}

func TestSnapshot_Lifecycle(t *testing.T) {
	dbPath := tempDB(t)
	startCycle(t, dbPath, "1")
	mustRunDB(t, dbPath, "append-batch", "--partition", "1", "--file", writeTemp(t, "events.yaml", batchFile))

	r := runDB(t, dbPath, "--format", "json", "snapshot", "create", "--partition", "1")
	assert.Equal(t, ExitCommandError, r.Code)
	resp, _ := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, CodeIncomplete, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "cycle_complete")

	completeCycle(t, dbPath, "1")

	r = mustRunDB(t, dbPath, "--format", "json", "snapshot", "create", "--partition", "1")
	_, data := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, float64(600000), data["durationMs"])
	assert.Equal(t, "manual", data["triggerType"])
	actors := data["actorMetrics"].([]any)
	require.Len(t, actors, 1)
	assert.Equal(t, float64(85), actors[0].(map[string]any)["netProfit"])

	r = mustRunDB(t, dbPath, "snapshot", "get", "--partition", "1")
	assert.Contains(t, r.Stdout, "partition 1 (manual)")
	assert.Contains(t, r.Stdout, "actor 7: income 150, purchases 25, net profit 85")

	r = mustRunDB(t, dbPath, "snapshot", "range", "--from", "1", "--to", "10")
	assert.Contains(t, r.Stdout, "partition 1 (manual)")

	r = mustRunDB(t, dbPath, "snapshot", "range", "--from", "2", "--to", "10")
	assert.Contains(t, r.Stdout, "No snapshots for partitions 2..10.")
}

func TestSnapshot_GetMissing(t *testing.T) {
	dbPath := tempDB(t)
	r := runDB(t, dbPath, "--format", "json", "snapshot", "get", "--partition", "9")
	assert.Equal(t, ExitCommandError, r.Code)
	resp, _ := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestSnapshot_RangeRejectsInvertedBounds(t *testing.T) {
	r := runDB(t, tempDB(t), "snapshot", "range", "--from", "5", "--to", "1")
	assert.Equal(t, ExitCommandError, r.Code)
}

func TestLegacyMigrateVerify(t *testing.T) {
	dbPath := tempDB(t)
	fixture := writeTemp(t, "matches.yaml", legacyFixture)

	r := mustRunDB(t, dbPath, "legacy", "import", "--file", fixture)
	assert.Contains(t, r.Stdout, "imported 3 of 3 legacy match(es)")
	r = mustRunDB(t, dbPath, "legacy", "import", "--file", fixture)
	assert.Contains(t, r.Stdout, "imported 0 of 3 legacy match(es)")

	r = runDB(t, dbPath, "verify")
	assert.Equal(t, ExitFailure, r.Code)
	assert.Contains(t, r.Stdout, "[COUNT_MISMATCH]")
	assert.Contains(t, r.Stdout, "[MISSING_CONVERSION]")

	r = mustRunDB(t, dbPath, "migrate", "--dry-run")
	assert.Contains(t, r.Stdout, "would migrate 3 of 3 legacy match(es) across 2 partition(s)")
	r = mustRunDB(t, dbPath, "events")
	assert.Contains(t, r.Stdout, "No partitions found.")

	r = mustRunDB(t, dbPath, "migrate", "--batch-size", "2")
	assert.Contains(t, r.Stdout, "migrated 3 of 3 legacy match(es) across 2 partition(s) (skipped 0, errors 0)")

	r = mustRunDB(t, dbPath, "--format", "json", "migrate")
	_, data := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, float64(0), data["migrated"])
	assert.Equal(t, float64(3), data["skipped"])

	r = mustRunDB(t, dbPath, "events")
	assert.Contains(t, r.Stdout, "partition 1: 2 event(s), max sequence 2")
	assert.Contains(t, r.Stdout, "partition 2: 1 event(s), max sequence 1")

	r = mustRunDB(t, dbPath, "--format", "json", "verify")
	resp, data := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, true, data["isValid"])
	assert.Equal(t, float64(3), data["legacyCount"])
}

func TestVerify_JSONFailureCarriesReport(t *testing.T) {
	dbPath := tempDB(t)
	mustRunDB(t, dbPath, "legacy", "import", "--file", writeTemp(t, "matches.yaml", legacyFixture))

	r := runDB(t, dbPath, "--format", "json", "verify")
	assert.Equal(t, ExitFailure, r.Code)
	resp, data := decodeEnvelope(t, r.Stdout)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeVerifyFailed, resp.Error.Code)
	assert.Equal(t, false, data["isValid"])
	assert.NotEmpty(t, data["issues"])
}

func TestMigrate_BadBatchSize(t *testing.T) {
	r := runDB(t, tempDB(t), "migrate", "--batch-size", "0")
	assert.Equal(t, ExitCommandError, r.Code)
	assert.Contains(t, r.Stderr, "--batch-size must be at least 1")
}

func TestLegacyImport_MissingFile(t *testing.T) {
	r := runDB(t, tempDB(t), "legacy", "import", "--file", "/nonexistent/matches.yaml")
	assert.Equal(t, ExitCommandError, r.Code)
	assert.Contains(t, r.Stderr, "failed to load legacy fixture")
}
