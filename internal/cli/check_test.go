package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/store"
	"github.com/roach88/brokercheck/internal/testutil"
)

const (
	orderingFinding  = "line 3 [non-monotonic] producer-message-ordering: producer = 'p1', topic = 't', partition = 0, offset = 1: message offset is not greater than the previous offset 2 at line 2"
	integrityFinding = "line 6 [write-never-read] message-integrity: topic = 't', partition = 0, offset = 3: message write at line 6 was never read by any consumer, it may be lost"
)

// checkWorkload has an offset regression at line 3 and an unread write at
// line 6, reported when the workload ends at line 7.
func checkWorkload() []ir.TestLogLine {
	b := testutil.NewLogBuilder()
	return []ir.TestLogLine{
		b.Start(),
		b.Write("p1", "t", 0, 2, nil, "a"),
		b.Write("p1", "t", 0, 1, nil, "b"),
		b.Read("c1", "t", 0, 2, nil, "a"),
		b.Read("c1", "t", 0, 1, nil, "b"),
		b.Write("p1", "t", 0, 3, nil, "c"),
		b.End(),
	}
}

func writeLogFile(t *testing.T, dir, name string, lines []ir.TestLogLine) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, testutil.WriteLog(&buf, lines))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

type checkRun struct {
	stdout string
	stderr string
	err    error
}

func runCheckCommand(t *testing.T, format, runID string, args ...string) checkRun {
	t.Helper()
	opts := &CheckOptions{
		RootOptions: &RootOptions{Format: format},
		RunIDs:      testutil.NewFixedRunIDGenerator(runID),
	}
	cmd := newCheckCommand(opts)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return checkRun{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestCheck_ReportsFindings(t *testing.T) {
	path := writeLogFile(t, t.TempDir(), "run.jsonl", checkWorkload())

	res := runCheckCommand(t, "text", "", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t,
		orderingFinding+"\n"+integrityFinding+"\n7 line(s) checked, 2 finding(s)\n",
		res.stdout)
}

func TestCheck_CleanLog(t *testing.T) {
	b := testutil.NewLogBuilder()
	path := writeLogFile(t, t.TempDir(), "clean.jsonl", []ir.TestLogLine{
		b.Start(),
		b.Write("p1", "t", 0, 0, ir.Key("k"), "a"),
		b.Read("c1", "t", 0, 0, ir.Key("k"), "a"),
		b.End(),
	})

	res := runCheckCommand(t, "text", "", path)
	require.NoError(t, res.err)
	assert.Equal(t, "4 line(s) checked, 0 finding(s)\n", res.stdout)
}

func TestCheck_ValidatorSelection(t *testing.T) {
	path := writeLogFile(t, t.TempDir(), "run.jsonl", checkWorkload())

	res := runCheckCommand(t, "text", "", "--validators", "producer-message-ordering", path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, orderingFinding+"\n7 line(s) checked, 1 finding(s)\n", res.stdout)
}

func TestCheck_JSON(t *testing.T) {
	path := writeLogFile(t, t.TempDir(), "run.jsonl", checkWorkload())

	res := runCheckCommand(t, "json", "", path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Source         string       `json:"source"`
			Validators     []string     `json:"validators"`
			LinesProcessed int          `json:"lines_processed"`
			Findings       []ir.Finding `json:"findings"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, path, resp.Data.Source)
	assert.Len(t, resp.Data.Validators, 4)
	assert.Equal(t, 7, resp.Data.LinesProcessed)
	require.Len(t, resp.Data.Findings, 2)
	assert.Equal(t, ir.CodeNonMonotonic, resp.Data.Findings[0].Code)
	assert.Equal(t, "producer-message-ordering", resp.Data.Findings[0].Validator)
}

func TestCheck_ResumeWithSQLite(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "checks.db")
	log := checkWorkload()

	// The first attempt only saw the first four lines.
	partial := writeLogFile(t, dir, "partial.jsonl", log[:4])
	res := runCheckCommand(t, "text", "run-1", "--db", db, "--checkpoint-every", "2", partial)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, orderingFinding+"\n4 line(s) checked, 1 finding(s) (run run-1)\n", res.stdout)

	full := writeLogFile(t, dir, "full.jsonl", log)
	res = runCheckCommand(t, "text", "", "--db", db, "--run-id", "run-1", "--checkpoint-every", "2", full)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, integrityFinding+"\n3 line(s) checked, 1 finding(s), 2 in run, resumed after line 4 (run run-1)\n", res.stdout)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	findings, err := st.ReadFindings(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, orderingFinding, formatFinding(findings[0]))
	assert.Equal(t, integrityFinding, formatFinding(findings[1]))

	cp, err := st.LoadCheckpoint(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, uint64(7), cp.Line)

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, partial, run.Source, "the first attempt names the run")
}

func TestCheck_ResumeCountsStoredFindings(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "checks.db")
	partial := writeLogFile(t, dir, "partial.jsonl", checkWorkload()[:4])

	res := runCheckCommand(t, "text", "run-1", "--db", db, partial)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	// Nothing is left to check, but the run already has a finding.
	res = runCheckCommand(t, "text", "", "--db", db, "--run-id", "run-1", partial)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, "0 line(s) checked, 0 finding(s), 1 in run, resumed after line 4 (run run-1)\n", res.stdout)
}

func TestCheck_ResumeWithPebble(t *testing.T) {
	dir := t.TempDir()
	pebbleDir := filepath.Join(dir, "cp")
	log := checkWorkload()

	partial := writeLogFile(t, dir, "partial.jsonl", log[:5])
	res := runCheckCommand(t, "text", "run-p", "--pebble", pebbleDir, partial)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	full := writeLogFile(t, dir, "full.jsonl", log)
	res = runCheckCommand(t, "text", "", "--pebble", pebbleDir, "--run-id", "run-p", full)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, integrityFinding+"\n2 line(s) checked, 1 finding(s), resumed after line 5 (run run-p)\n", res.stdout)
}

func TestCheck_CheckpointMismatch(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "checks.db")
	path := writeLogFile(t, dir, "run.jsonl", checkWorkload())

	res := runCheckCommand(t, "text", "run-1", "--db", db, "--validators", "producer-message-ordering", path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	res = runCheckCommand(t, "text", "", "--db", db, "--run-id", "run-1", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Equal(t, ErrCodeCheckpoint, ErrorCode(res.err))
}

func TestCheck_MetricsOut(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "run.jsonl", checkWorkload())
	metrics := filepath.Join(dir, "check.prom")

	res := runCheckCommand(t, "text", "", "--metrics-out", metrics, path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "brokercheck_events_processed_total 7")
	assert.Contains(t, text, `brokercheck_findings_total{code="non-monotonic",validator="producer-message-ordering"} 1`)
	assert.Contains(t, text, `brokercheck_findings_total{code="write-never-read",validator="message-integrity"} 1`)
}

func TestCheck_Profile(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "run.jsonl", checkWorkload())
	db := filepath.Join(dir, "profile.db")
	profile := filepath.Join(dir, "ci.cue")
	require.NoError(t, os.WriteFile(profile, []byte(`
validators: ["message-integrity"]
checkpoint_every: 3
store: sqlite: "`+db+`"
`), 0644))

	res := runCheckCommand(t, "text", "run-prof", "--profile", profile, path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, integrityFinding+"\n7 line(s) checked, 1 finding(s) (run run-prof)\n", res.stdout)

	// Flags override the profile.
	res = runCheckCommand(t, "text", "run-flag", "--profile", profile, "--validators", "producer-message-ordering", path)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.True(t, strings.HasPrefix(res.stdout, orderingFinding+"\n"))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestCheck_InvalidProfile(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "run.jsonl", checkWorkload())
	profile := filepath.Join(dir, "bad.cue")
	require.NoError(t, os.WriteFile(profile, []byte(`checkpoint_every: -1`), 0644))

	res := runCheckCommand(t, "text", "", "--profile", profile, path)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Equal(t, "E201", ErrorCode(res.err))
}

func TestCheck_MalformedLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"fields":{"type":"WorkloadStarted"}}`+"\n{not json\n"), 0644))

	res := runCheckCommand(t, "text", "", path)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Equal(t, ErrCodeMalformedLog, ErrorCode(res.err))
	assert.Contains(t, res.err.Error(), "line 2")
}

func TestCheck_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "run.jsonl", checkWorkload())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", nil, "a log file or --kafka-brokers"},
		{"file and kafka", []string{"--kafka-topic", "t", path}, "not both"},
		{"two stores", []string{"--db", filepath.Join(dir, "a.db"), "--pebble", filepath.Join(dir, "p"), path}, "mutually exclusive"},
		{"run id without store", []string{"--run-id", "r", path}, "--run-id requires"},
		{"bad interval", []string{"--checkpoint-every", "0", path}, "must be positive"},
		{"unknown validator", []string{"--validators", "exactly-once", path}, "invalid validator selection"},
		{"missing file", []string{filepath.Join(dir, "nope.jsonl")}, "failed to open log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCheckCommand(t, "text", "", tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, ExitCommandError, GetExitCode(res.err))
			assert.Contains(t, res.err.Error(), tt.want)
		})
	}
}
