package loop

import (
	"time"

	"github.com/d0rbu/llamastack-austin/internal/history"
)

// Status is the terminal state of a debugging session. Every way the loop
// can end maps to exactly one of these; there is no generic catch-all.
type Status string

const (
	// StatusOracleStopped: the oracle returned the stop sentinel.
	StatusOracleStopped Status = "oracle_stopped"
	// StatusDebuggerTerminated: liveness detection saw the debuggee or GDB exit.
	StatusDebuggerTerminated Status = "debugger_terminated"
	// StatusStepBudgetExhausted: the configured step bound was reached.
	StatusStepBudgetExhausted Status = "step_budget_exhausted"
	// StatusOracleUnresponsive: oracle timeout, empty response, or text that
	// failed validation. Never retried.
	StatusOracleUnresponsive Status = "oracle_unresponsive"
	// StatusTransportFailure: a command round trip timed out or the pipe
	// closed mid-command. A legitimate investigation outcome, not a crash.
	StatusTransportFailure Status = "transport_failure"
	// StatusSetupFailed: GDB failed to launch or the symbol load failed.
	StatusSetupFailed Status = "setup_failed"
	// StatusCanceled: the caller canceled the run between or during steps.
	StatusCanceled Status = "canceled"
)

// Outcome is the terminal summary handed to every caller: the full step
// transcript plus a definite status. The debugger subprocess is already
// torn down by the time an Outcome exists.
type Outcome struct {
	RunID          string               `json:"run_id"`
	Executable     string               `json:"executable"`
	BugDescription string               `json:"bug_description"`
	Status         Status               `json:"status"`
	StepsAttempted int                  `json:"steps_attempted"`
	Steps          []history.StepRecord `json:"steps"`
	Error          string               `json:"error,omitempty"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}
