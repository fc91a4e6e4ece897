package history

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/d0rbu/llamastack-austin/internal/mi"
)

// StepRecord is the immutable outcome of one loop iteration. A record with an
// empty Command means the oracle asked to stop, or produced text that never
// reached the debugger.
type StepRecord struct {
	Step       int           `json:"step"`
	Command    string        `json:"command,omitempty"`
	Token      int           `json:"token,omitempty"`
	Events     []mi.Event    `json:"events,omitempty"`
	Summary    string        `json:"summary"`
	Terminated bool          `json:"terminated"`
	Duration   time.Duration `json:"duration_ns"`
}

// Summarize renders the received events into the textual form shown to the
// oracle and stored in transcripts.
func Summarize(events []mi.Event) string {
	if len(events) == 0 {
		return "(no gdb output)"
	}
	lines := lo.Map(events, func(e mi.Event, _ int) string {
		return "  " + e.Summary()
	})
	return strings.Join(lines, "\n")
}

// Window is the append-only log of StepRecords for one session. The full
// sequence is retained for final reporting; oracle prompts only ever see the
// bounded Recent view.
type Window struct {
	records []StepRecord
	recentK int
}

// NewWindow creates a window whose Recent view is capped at recentK records.
// recentK <= 0 means the view is unbounded.
func NewWindow(recentK int) *Window {
	return &Window{recentK: recentK}
}

// Append adds a record. Records are never mutated or removed afterwards.
func (w *Window) Append(rec StepRecord) {
	w.records = append(w.records, rec)
}

// Len returns the number of appended records.
func (w *Window) Len() int { return len(w.records) }

// All returns a copy of every record in append order.
func (w *Window) All() []StepRecord {
	out := make([]StepRecord, len(w.records))
	copy(out, w.records)
	return out
}

// Recent returns the last k records in original order, or everything when
// fewer than k exist.
func (w *Window) Recent() []StepRecord {
	if w.recentK <= 0 || len(w.records) <= w.recentK {
		return w.All()
	}
	tail := w.records[len(w.records)-w.recentK:]
	out := make([]StepRecord, len(tail))
	copy(out, tail)
	return out
}
