// Package output renders session transcripts for the two audiences the tool
// serves: NDJSON for agents and scripts, text for humans.
package output

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/store"
)

// SchemaVersion tags every NDJSON record so consumers can detect drift.
const SchemaVersion = 1

// SessionStart is emitted when a debugging run begins.
type SessionStart struct {
	Type           string `json:"type"` // "session_start"
	SchemaVersion  int    `json:"schemaVersion"`
	RunID          string `json:"run_id"`
	Executable     string `json:"executable"`
	BugDescription string `json:"bug_description"`
	Timestamp      string `json:"timestamp"`
}

// Step is emitted once per loop iteration.
type Step struct {
	Type          string `json:"type"` // "step"
	SchemaVersion int    `json:"schemaVersion"`
	RunID         string `json:"run_id"`
	Step          int    `json:"step"`
	Command       string `json:"command,omitempty"`
	Summary       string `json:"summary"`
	Terminated    bool   `json:"terminated"`
	DurationMS    int64  `json:"duration_ms"`
}

// SessionEnd is emitted with the terminal status.
type SessionEnd struct {
	Type           string `json:"type"` // "session_end"
	SchemaVersion  int    `json:"schemaVersion"`
	RunID          string `json:"run_id"`
	Status         string `json:"status"`
	StepsAttempted int    `json:"steps_attempted"`
	Error          string `json:"error,omitempty"`
	DurationSec    int    `json:"duration_seconds"`
}

// RunSummary is one row of a saved-run listing.
type RunSummary struct {
	Type           string `json:"type"` // "run"
	SchemaVersion  int    `json:"schemaVersion"`
	RunID          string `json:"run_id"`
	Executable     string `json:"executable"`
	BugDescription string `json:"bug_description"`
	Status         string `json:"status"`
	Steps          int    `json:"steps"`
	StartedAt      string `json:"started_at"`
}

// Error is a machine-readable failure record.
type Error struct {
	Type          string `json:"type"` // "error"
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// NDJSONWriter writes one JSON record per line. Safe for concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer targeting w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

func (w *NDJSONWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// WriteSessionStart emits the run header record.
func (w *NDJSONWriter) WriteSessionStart(out *loop.Outcome) error {
	return w.write(&SessionStart{
		Type:           "session_start",
		SchemaVersion:  SchemaVersion,
		RunID:          out.RunID,
		Executable:     out.Executable,
		BugDescription: out.BugDescription,
		Timestamp:      out.StartedAt.UTC().Format(time.RFC3339),
	})
}

// WriteOutcome emits the whole transcript: per-step records followed by the
// session_end record.
func (w *NDJSONWriter) WriteOutcome(out *loop.Outcome) error {
	if err := w.WriteSessionStart(out); err != nil {
		return err
	}
	for _, rec := range out.Steps {
		step := &Step{
			Type:          "step",
			SchemaVersion: SchemaVersion,
			RunID:         out.RunID,
			Step:          rec.Step,
			Command:       rec.Command,
			Summary:       rec.Summary,
			Terminated:    rec.Terminated,
			DurationMS:    rec.Duration.Milliseconds(),
		}
		if err := w.write(step); err != nil {
			return err
		}
	}
	return w.write(&SessionEnd{
		Type:           "session_end",
		SchemaVersion:  SchemaVersion,
		RunID:          out.RunID,
		Status:         string(out.Status),
		StepsAttempted: out.StepsAttempted,
		Error:          out.Error,
		DurationSec:    int(out.FinishedAt.Sub(out.StartedAt).Seconds()),
	})
}

// WriteRunSummary emits one saved-run listing record.
func (w *NDJSONWriter) WriteRunSummary(run store.RunSummary) error {
	return w.write(&RunSummary{
		Type:           "run",
		SchemaVersion:  SchemaVersion,
		RunID:          run.RunID,
		Executable:     run.Executable,
		BugDescription: run.BugDescription,
		Status:         run.Status,
		Steps:          run.Steps,
		StartedAt:      run.StartedAt.UTC().Format(time.RFC3339),
	})
}

// WriteError emits a machine-readable failure record.
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	rec := &Error{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		rec.Hint = hint[0]
	}
	return w.write(rec)
}
