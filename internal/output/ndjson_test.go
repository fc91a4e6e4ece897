package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0rbu/llamastack-austin/internal/history"
	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/store"
)

func sampleOutcome() *loop.Outcome {
	started := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return &loop.Outcome{
		RunID:          "run-1",
		Executable:     "./a.out",
		BugDescription: "segfault in main",
		Status:         loop.StatusDebuggerTerminated,
		StepsAttempted: 2,
		StartedAt:      started,
		FinishedAt:     started.Add(7 * time.Second),
		Steps: []history.StepRecord{
			{Step: 1, Command: "-exec-run", Summary: "  result running", Duration: 120 * time.Millisecond},
			{Step: 2, Command: "-exec-continue", Summary: "  notify stopped", Terminated: true},
		},
	}
}

func TestNDJSONWriteOutcome(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewNDJSONWriter(buf).WriteOutcome(sampleOutcome()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var start map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &start))
	assert.Equal(t, "session_start", start["type"])
	assert.EqualValues(t, SchemaVersion, start["schemaVersion"])
	assert.Equal(t, "run-1", start["run_id"])

	var step map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &step))
	assert.Equal(t, "step", step["type"])
	assert.EqualValues(t, 1, step["step"])
	assert.Equal(t, "-exec-run", step["command"])
	assert.EqualValues(t, 120, step["duration_ms"])

	var end map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &end))
	assert.Equal(t, "session_end", end["type"])
	assert.Equal(t, "debugger_terminated", end["status"])
	assert.EqualValues(t, 2, end["steps_attempted"])
	assert.EqualValues(t, 7, end["duration_seconds"])
}

func TestNDJSONWriteError(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, NewNDJSONWriter(buf).WriteError("SETUP_FAILED", "gdb not found", "install gdb"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "error", rec["type"])
	assert.Equal(t, "SETUP_FAILED", rec["code"])
	assert.Equal(t, "gdb not found", rec["message"])
	assert.Equal(t, "install gdb", rec["hint"])
}

func TestWriteRunSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewNDJSONWriter(buf)

	require.NoError(t, w.WriteRunSummary(store.RunSummary{
		RunID:          "run-1",
		Executable:     "/tmp/crasher",
		BugDescription: "segfault",
		Status:         "debugger_terminated",
		Steps:          2,
		StartedAt:      time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "run", rec["type"])
	assert.Equal(t, float64(SchemaVersion), rec["schemaVersion"])
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, "2026-02-01T12:00:00Z", rec["started_at"])
}

func TestWriteTranscript(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteTranscript(buf, sampleOutcome()))

	text := buf.String()
	assert.Contains(t, text, "Debug session run-1")
	assert.Contains(t, text, "Step 1: -exec-run")
	assert.Contains(t, text, "Status: debugger_terminated")
	assert.Contains(t, text, "Steps attempted: 2")
	// summary table
	assert.Contains(t, text, "-exec-continue")
}

func TestWriteTranscriptNoSteps(t *testing.T) {
	out := sampleOutcome()
	out.Steps = nil
	out.Status = loop.StatusSetupFailed
	out.Error = "symbol load failed"
	out.StepsAttempted = 0

	buf := &bytes.Buffer{}
	require.NoError(t, WriteTranscript(buf, out))
	assert.Contains(t, buf.String(), "Detail: symbol load failed")
}
