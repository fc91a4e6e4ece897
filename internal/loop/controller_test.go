package loop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0rbu/llamastack-austin/internal/oracle"
	"github.com/d0rbu/llamastack-austin/internal/stream"
)

// stubGdb is a fake debugger for end-to-end loop tests: it acknowledges the
// token-1 symbol load, runs the target to a normal exit on -exec-run, and
// answers everything else with a bare done result.
const stubGdb = `#!/bin/sh
echo '=thread-group-added,id="i1"'
echo '(gdb)'
while IFS= read -r line; do
  tok="${line%%-*}"
  case "$line" in
    *-file-exec-and-symbols*)
      echo "${tok}^done"
      echo '(gdb)'
      ;;
    *-exec-run*)
      echo '=thread-group-started,id="i1",pid="4242"'
      echo '*running,thread-id="all"'
      echo '=thread-group-exited,id="i1",exit-code="0"'
      echo '*stopped,reason="exited-normally"'
      echo "${tok}^running"
      echo '(gdb)'
      ;;
    *-gdb-exit*)
      exit 0
      ;;
    *-hang*)
      ;;
    *)
      echo "${tok}^done"
      echo '(gdb)'
      ;;
  esac
done
`

const stubGdbLoadFails = `#!/bin/sh
echo '(gdb)'
while IFS= read -r line; do
  case "$line" in
    *-file-exec-and-symbols*)
      echo '1^error,msg="No such file or directory."'
      echo '(gdb)'
      ;;
    *-gdb-exit*)
      exit 0
      ;;
  esac
done
`

const stubGdbDiesAfterLoad = `#!/bin/sh
echo '(gdb)'
IFS= read -r line
echo '1^done'
echo '(gdb)'
exit 0
`

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gdb")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func testConfig(t *testing.T, script string) Config {
	t.Helper()
	return Config{
		Executable:     "./a.out",
		BugDescription: "crashes on startup",
		GDBPath:        writeStub(t, script),
		MaxSteps:       5,
		CommandTimeout: 2 * time.Second,
		OracleTimeout:  time.Second,
		StartTimeout:   5 * time.Second,
	}
}

type providerFunc func(context.Context, string) (string, error)

func (f providerFunc) Propose(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestRunOracleStopsImmediately(t *testing.T) {
	c := New(testConfig(t, stubGdb), oracle.NewScripted("DONE"))
	out := c.Run(context.Background())

	assert.Equal(t, StatusOracleStopped, out.Status)
	assert.Equal(t, 1, out.StepsAttempted)
	require.Len(t, out.Steps, 1)
	assert.Empty(t, out.Steps[0].Command, "stop step records no command")
}

func TestRunSetupFailure(t *testing.T) {
	c := New(testConfig(t, stubGdbLoadFails), oracle.NewScripted("DONE"))
	out := c.Run(context.Background())

	assert.Equal(t, StatusSetupFailed, out.Status)
	assert.Zero(t, out.StepsAttempted)
	assert.Empty(t, out.Steps)
	assert.Contains(t, out.Error, "No such file")
}

func TestRunDetectsNormalExit(t *testing.T) {
	c := New(testConfig(t, stubGdb), oracle.NewScripted("-exec-run", "DONE"))
	out := c.Run(context.Background())

	assert.Equal(t, StatusDebuggerTerminated, out.Status)
	assert.Equal(t, 1, out.StepsAttempted)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "-exec-run", out.Steps[0].Command)
	assert.True(t, out.Steps[0].Terminated)
	assert.Contains(t, out.Steps[0].Summary, "exited-normally")
}

func TestRunMalformedOracleTextIsFatal(t *testing.T) {
	script := oracle.NewScripted("I would suggest running the program first.")
	c := New(testConfig(t, stubGdb), script)
	out := c.Run(context.Background())

	assert.Equal(t, StatusOracleUnresponsive, out.Status)
	assert.Equal(t, 1, out.StepsAttempted, "invalid output ends the loop on the first step")
	assert.Equal(t, 1, script.Calls(), "no retry after a malformed response")
	require.Len(t, out.Steps, 1, "the no-op step is still recorded")
	assert.Empty(t, out.Steps[0].Command)
	assert.Contains(t, out.Steps[0].Summary, "unusable text")
}

func TestRunOracleErrorIsFatal(t *testing.T) {
	c := New(testConfig(t, stubGdb), oracle.NewFailing(errors.New("backend unreachable")))
	out := c.Run(context.Background())

	assert.Equal(t, StatusOracleUnresponsive, out.Status)
	assert.Contains(t, out.Error, "backend unreachable")
	assert.Empty(t, out.Steps)
}

func TestRunEmptyOracleResponseIsFatal(t *testing.T) {
	c := New(testConfig(t, stubGdb), oracle.NewScripted("   "))
	out := c.Run(context.Background())

	assert.Equal(t, StatusOracleUnresponsive, out.Status)
}

func TestRunStepBudgetExhausted(t *testing.T) {
	cfg := testConfig(t, stubGdb)
	cfg.MaxSteps = 3
	c := New(cfg, oracle.NewScripted("-exec-next"))
	out := c.Run(context.Background())

	assert.Equal(t, StatusStepBudgetExhausted, out.Status)
	assert.Equal(t, 3, out.StepsAttempted)
	require.Len(t, out.Steps, 3)
	assert.LessOrEqual(t, len(out.Steps), cfg.MaxSteps)
	for i, rec := range out.Steps {
		assert.Equal(t, i+1, rec.Step)
		assert.Equal(t, "-exec-next", rec.Command)
		assert.False(t, rec.Terminated)
	}
}

func TestRunTransportFailure(t *testing.T) {
	c := New(testConfig(t, stubGdbDiesAfterLoad), oracle.NewScripted("-exec-run"))
	out := c.Run(context.Background())

	assert.Equal(t, StatusTransportFailure, out.Status)
	assert.Equal(t, 1, out.StepsAttempted)
	require.Len(t, out.Steps, 1, "the failed step is recorded for the transcript")
	assert.Equal(t, "-exec-run", out.Steps[0].Command)
	assert.True(t, out.Steps[0].Terminated)
	assert.Contains(t, out.Steps[0].Summary, "transport:")
}

func TestRunCancellationMidStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := providerFunc(func(context.Context, string) (string, error) {
		// Cancel while the command round trip is pending; the stub never
		// answers -hang, so Send blocks until the context fires.
		cancel()
		return "-hang", nil
	})

	cfg := testConfig(t, stubGdb)
	cfg.CommandTimeout = 10 * time.Second
	out := New(cfg, provider).Run(ctx)

	assert.Equal(t, StatusCanceled, out.Status)
	require.Len(t, out.Steps, 1, "mid-step cancellation still records the step")
}

func TestRunStreamsTranscriptChunks(t *testing.T) {
	cfg := testConfig(t, stubGdb)
	cfg.Tap = stream.NewQueue(256)
	c := New(cfg, oracle.NewScripted("-exec-run"))
	out := c.Run(context.Background())
	cfg.Tap.Close()

	require.Equal(t, StatusDebuggerTerminated, out.Status)

	joined := ""
	for chunk := range cfg.Tap.Chunks() {
		joined += chunk
	}
	assert.Contains(t, joined, "Starting debug session")
	assert.Contains(t, joined, "Step 1/5")
	assert.Contains(t, joined, "-> -exec-run")
	assert.Contains(t, joined, "Session finished: debugger_terminated")
}

func TestRunAssignsRunIDAndTimestamps(t *testing.T) {
	c := New(testConfig(t, stubGdb), oracle.NewScripted("DONE"))
	out := c.Run(context.Background())

	assert.NotEmpty(t, out.RunID)
	assert.False(t, out.StartedAt.IsZero())
	assert.False(t, out.FinishedAt.IsZero())
	assert.Equal(t, "./a.out", out.Executable)
	assert.Equal(t, "crashes on startup", out.BugDescription)
}
