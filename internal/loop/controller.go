// Package loop ties the orchestrator together: it drives the
// oracle → validate → send → record cycle until a terminal state is
// reached, enforcing the step budget and guaranteeing session teardown.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d0rbu/llamastack-austin/internal/gdb"
	"github.com/d0rbu/llamastack-austin/internal/history"
	"github.com/d0rbu/llamastack-austin/internal/mi"
	"github.com/d0rbu/llamastack-austin/internal/oracle"
	"github.com/d0rbu/llamastack-austin/internal/stream"
)

// Config bounds one debugging run.
type Config struct {
	Executable     string
	BugDescription string

	MaxSteps       int           // hard step bound, default 15
	RecentWindow   int           // history records shown to the oracle, default 5
	CommandTimeout time.Duration // per MI command, default 15s
	OracleTimeout  time.Duration // per oracle call, default 60s
	StartTimeout   time.Duration // symbol load, default 10s
	GDBPath        string        // default "gdb"

	Clock  clock.Clock        // injectable for tests
	Tap    *stream.Queue      // optional live transcript chunks
	Logger *zap.SugaredLogger // optional verbose logging
}

func (c *Config) applyDefaults() {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 15
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = 5
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 15 * time.Second
	}
	if c.OracleTimeout <= 0 {
		c.OracleTimeout = 60 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
}

// Controller runs one session. It is single-threaded and cooperative: each
// step fully completes before the next begins, and there is no pipelining
// across steps.
type Controller struct {
	cfg      Config
	provider oracle.Provider
}

// New builds a controller for one run.
func New(cfg Config, provider oracle.Provider) *Controller {
	cfg.applyDefaults()
	return &Controller{cfg: cfg, provider: provider}
}

// Run executes the session to completion and always returns an Outcome with
// a definite status. Transport and oracle failures become terminal states,
// never panics or returned errors; the debugger subprocess is never left
// running.
func (c *Controller) Run(ctx context.Context) *Outcome {
	out := &Outcome{
		RunID:          uuid.NewString(),
		Executable:     c.cfg.Executable,
		BugDescription: c.cfg.BugDescription,
		StartedAt:      c.cfg.Clock.Now(),
	}
	window := history.NewWindow(c.cfg.RecentWindow)

	c.chunk("Starting debug session %s\nExecutable: %s\nBug: %s\n", out.RunID, c.cfg.Executable, c.cfg.BugDescription)

	sess, err := gdb.Start(ctx, c.cfg.Executable, gdb.Options{
		GDBPath:      c.cfg.GDBPath,
		StartTimeout: c.cfg.StartTimeout,
		Clock:        c.cfg.Clock,
		Tap:          c.cfg.Tap,
	})
	if err != nil {
		c.debugw("setup failed", "error", err)
		c.chunk("Setup failed: %v\n", err)
		return c.finish(out, window, StatusSetupFailed, err.Error())
	}
	defer sess.Shutdown()

	status := StatusStepBudgetExhausted
	detail := ""

steps:
	for step := 1; step <= c.cfg.MaxSteps; step++ {
		// Cancellation is honored between steps; teardown still runs via the
		// deferred Shutdown.
		if ctx.Err() != nil {
			status, detail = StatusCanceled, ctx.Err().Error()
			break
		}
		out.StepsAttempted = step
		c.chunk("\n── Step %d/%d ──\n", step, c.cfg.MaxSteps)

		prompt := oracle.BuildPrompt(c.cfg.BugDescription, window.Recent())
		octx, cancel := context.WithTimeout(ctx, c.cfg.OracleTimeout)
		raw, err := c.provider.Propose(octx, prompt)
		cancel()
		if err != nil || strings.TrimSpace(raw) == "" {
			if ctx.Err() != nil {
				status, detail = StatusCanceled, ctx.Err().Error()
				break
			}
			if err == nil {
				err = errors.New("oracle returned an empty response")
			}
			c.debugw("oracle failed", "step", step, "error", err)
			c.chunk("Oracle failed: %v\n", err)
			status, detail = StatusOracleUnresponsive, err.Error()
			break
		}

		decision := oracle.Validate(raw)
		switch decision.Kind {
		case oracle.DecisionStop:
			c.chunk("Oracle declared the investigation complete.\n")
			window.Append(history.StepRecord{
				Step:    step,
				Summary: "oracle declared the investigation complete",
			})
			status = StatusOracleStopped
			break steps

		case oracle.DecisionInvalid:
			// Recorded as a no-op step so the transcript stays complete, then
			// treated as unresponsive: an oracle that cannot produce a
			// parseable command cannot drive further steps.
			c.chunk("Oracle response is not a usable MI command: %s\n", snippet(decision.Raw))
			window.Append(history.StepRecord{
				Step:    step,
				Summary: fmt.Sprintf("oracle produced unusable text: %s", snippet(decision.Raw)),
			})
			status, detail = StatusOracleUnresponsive, "oracle response failed validation"
			break steps
		}

		c.debugw("executing command", "step", step, "command", decision.Command)
		started := c.cfg.Clock.Now()
		ex, sendErr := sess.Send(ctx, decision.Command, c.cfg.CommandTimeout)
		elapsed := c.cfg.Clock.Now().Sub(started)

		rec := history.StepRecord{
			Step:     step,
			Command:  decision.Command,
			Token:    ex.Token,
			Events:   ex.Events,
			Summary:  history.Summarize(ex.Events),
			Duration: elapsed,
		}

		if sendErr != nil {
			// The step is still recorded so the transcript is complete; the
			// session is dead and no retry happens.
			rec.Summary = rec.Summary + "\n  transport: " + sendErr.Error()
			rec.Terminated = true
			window.Append(rec)
			if ctx.Err() != nil {
				status, detail = StatusCanceled, ctx.Err().Error()
				break
			}
			c.chunk("Transport failure: %v\n", sendErr)
			status, detail = StatusTransportFailure, sendErr.Error()
			break
		}

		rec.Terminated = mi.IsTerminated(ex.Events)
		window.Append(rec)

		if rec.Terminated {
			c.chunk("Debugger or target terminated.\n")
			status = StatusDebuggerTerminated
			break
		}
	}

	sess.Shutdown()
	if status == StatusStepBudgetExhausted {
		c.chunk("Reached maximum debugging steps (%d).\n", c.cfg.MaxSteps)
	}
	return c.finish(out, window, status, detail)
}

func (c *Controller) finish(out *Outcome, window *history.Window, status Status, detail string) *Outcome {
	out.Status = status
	out.Error = detail
	out.Steps = window.All()
	out.FinishedAt = c.cfg.Clock.Now()
	c.chunk("\nSession finished: %s after %d step(s).\n", status, out.StepsAttempted)
	c.debugw("session finished", "run_id", out.RunID, "status", status, "steps", out.StepsAttempted)
	return out
}

func (c *Controller) chunk(format string, args ...any) {
	if c.cfg.Tap != nil {
		c.cfg.Tap.Push(fmt.Sprintf(format, args...))
	}
}

func (c *Controller) debugw(msg string, kv ...any) {
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debugw(msg, kv...)
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return fmt.Sprintf("%q", s)
}
