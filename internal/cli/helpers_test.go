package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliRun is the captured outcome of one CLI invocation.
type cliRun struct {
	Stdout string
	Stderr string
	Code   int
}

func runCLI(t *testing.T, args ...string) cliRun {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute(args, stdout, stderr)
	return cliRun{Stdout: stdout.String(), Stderr: stderr.String(), Code: code}
}

// runDB runs a command against dbPath.
func runDB(t *testing.T, dbPath string, args ...string) cliRun {
	t.Helper()
	return runCLI(t, append([]string{"--db", dbPath}, args...)...)
}

func mustRunDB(t *testing.T, dbPath string, args ...string) cliRun {
	t.Helper()
	r := runDB(t, dbPath, args...)
	require.Equal(t, ExitSuccess, r.Code, "stdout: %s\nstderr: %s", r.Stdout, r.Stderr)
	return r
}

func decodeEnvelope(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "cyclelog.db")
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const legacyFixture = `matches:
  - id: 101
    match_type: league
    created_at: 2026-03-01T09:15:00Z
    participants:
      - {actor: 1, entity: 10, result: win, damage_dealt: 40, credits: 500}
      - {actor: 2, entity: 20, result: loss, damage_dealt: 15, credits: 100, destroyed: true}
  - id: 102
    match_type: league
    created_at: 2026-03-01T18:00:00Z
    participants:
      - {actor: 1, entity: 10, result: draw}
      - {actor: 3, entity: 30, result: draw}
  - id: 103
    match_type: league
    created_at: 2026-03-02T08:00:00Z
    participants:
      - {actor: 2, entity: 20, result: win}
      - {actor: 3, entity: 30, result: loss}
`
