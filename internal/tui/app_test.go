package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/d0rbu/llamastack-austin/internal/history"
	"github.com/d0rbu/llamastack-austin/internal/loop"
)

func TestRenderTranscript(t *testing.T) {
	out := &loop.Outcome{
		RunID:          "abc123",
		Executable:     "/tmp/crasher",
		BugDescription: "segfault after parsing",
		Status:         loop.StatusDebuggerTerminated,
		StepsAttempted: 2,
		StartedAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Steps: []history.StepRecord{
			{Step: 1, Command: "-break-insert main", Summary: "^done"},
			{Step: 2, Command: "-exec-run", Summary: "*stopped reason=exited-normally", Terminated: true},
		},
	}

	text := renderTranscript(out)

	assert.Contains(t, text, "Bug: segfault after parsing")
	assert.Contains(t, text, "── Step 1 ──")
	assert.Contains(t, text, "-> -break-insert main")
	assert.Contains(t, text, "-> -exec-run")
	assert.Contains(t, text, "Status: debugger_terminated")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactlyten", truncate("exactlyten", 10))
	assert.Equal(t, "toolon...", truncate("toolongvalue", 9))
}

func TestFormatAge(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "now", formatAge(now.Add(-30*time.Second)))
	assert.Equal(t, "5m", formatAge(now.Add(-5*time.Minute)))
	assert.Equal(t, "3h", formatAge(now.Add(-3*time.Hour)))
	assert.Equal(t, "2d", formatAge(now.Add(-49*time.Hour)))
}
