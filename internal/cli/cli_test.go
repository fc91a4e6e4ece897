package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d0rbu/llamastack-austin/internal/config"
	"github.com/d0rbu/llamastack-austin/internal/history"
	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/store"
)

// testGlobals creates a Globals struct with captured stdout/stderr
func testGlobals(format string) (*Globals, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	g := &Globals{
		Format:  format,
		Quiet:   false,
		Verbose: false,
		Stdout:  stdout,
		Stderr:  stderr,
		Config:  config.Default(),
	}
	g.logger = newAgentLogger(g)
	return g, stdout, stderr
}

// --- Config Command Tests ---

func TestConfigShowCmd_Run(t *testing.T) {
	t.Run("outputs config in text format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		output := stdout.String()
		assert.Contains(t, output, "Current Configuration:")
		assert.Contains(t, output, "format:")
		assert.Contains(t, output, "Oracle:")
		assert.Contains(t, output, "http://localhost:8321")
	})

	t.Run("outputs config in NDJSON format", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		cmd := &ConfigShowCmd{}

		err := cmd.Run(globals)
		require.NoError(t, err)

		var result map[string]interface{}
		err = json.Unmarshal(stdout.Bytes(), &result)
		require.NoError(t, err)

		assert.Equal(t, "config", result["type"])
		assert.Contains(t, result, "oracle")
		assert.Contains(t, result, "debug")
	})
}

// --- Debug Command Tests ---

func TestDebugCmd_Validation(t *testing.T) {
	t.Run("rejects missing bug description", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")
		dir := t.TempDir()
		target := filepath.Join(dir, "target")
		require.NoError(t, os.WriteFile(target, []byte("bin"), 0o755))

		cmd := &DebugCmd{Executable: target}
		err := cmd.Run(globals)
		require.Error(t, err)
		assert.Contains(t, stderr.String(), "MISSING_BUG")
	})

	t.Run("rejects nonexistent executable", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")

		cmd := &DebugCmd{
			Executable: filepath.Join(t.TempDir(), "missing"),
			Bug:        []string{"it", "crashes"},
		}
		err := cmd.Run(globals)
		require.Error(t, err)
		assert.Contains(t, stderr.String(), "EXECUTABLE_NOT_FOUND")
	})

	t.Run("emits NDJSON error records", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")

		cmd := &DebugCmd{
			Executable: filepath.Join(t.TempDir(), "missing"),
			Bug:        []string{"crash"},
		}
		err := cmd.Run(globals)
		require.Error(t, err)

		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
		assert.Equal(t, "error", rec["type"])
		assert.Equal(t, "EXECUTABLE_NOT_FOUND", rec["code"])
	})
}

const stubGdb = `#!/bin/sh
echo '(gdb)'
while IFS= read -r line; do
  tok="${line%%-*}"
  case "$line" in
    *-gdb-exit*)
      exit 0
      ;;
    *)
      echo "${tok}^done"
      echo '(gdb)'
      ;;
  esac
done
`

// stubOracleServer answers the model listing and always proposes the given
// responses in order, repeating the last one.
func stubOracleServer(t *testing.T, responses ...string) *httptest.Server {
	t.Helper()
	call := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"stub-model"}]}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		resp := responses[len(responses)-1]
		if call < len(responses) {
			resp = responses[call]
		}
		call++
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": resp}},
			},
		}
		json.NewEncoder(w).Encode(body)
	})
	return httptest.NewServer(mux)
}

func TestDebugCmd_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	gdbPath := filepath.Join(dir, "gdb-stub")
	require.NoError(t, os.WriteFile(gdbPath, []byte(stubGdb), 0o755))
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, []byte("bin"), 0o755))

	oracleSrv := stubOracleServer(t, "-break-insert main", "DONE")
	defer oracleSrv.Close()

	globals, stdout, _ := testGlobals("ndjson")
	globals.Config.Store.Save = false

	cmd := &DebugCmd{
		Executable:     target,
		Bug:            []string{"segfault", "on", "startup"},
		OracleURL:      oracleSrv.URL,
		GDBPath:        gdbPath,
		MaxSteps:       3,
		CommandTimeout: 2 * time.Second,
		Save:           false,
	}
	require.NoError(t, cmd.Run(globals))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "session_start", first["type"])
	assert.Equal(t, "segfault on startup", first["bug_description"])

	var last map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "session_end", last["type"])
	assert.Equal(t, string(loop.StatusOracleStopped), last["status"])
}

// --- Runs / Show Command Tests ---

func seedStore(t *testing.T) (string, *loop.Outcome) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	out := &loop.Outcome{
		RunID:          "11112222-3333-4444-5555-666677778888",
		Executable:     "/tmp/crasher",
		BugDescription: "segfault after parsing",
		Status:         loop.StatusDebuggerTerminated,
		StepsAttempted: 1,
		StartedAt:      time.Now().Add(-time.Minute),
		FinishedAt:     time.Now(),
		Steps: []history.StepRecord{
			{Step: 1, Command: "-exec-run", Summary: "*stopped reason=exited-normally", Terminated: true},
		},
	}
	require.NoError(t, st.SaveOutcome(out))
	return path, out
}

func TestRunsCmd_Run(t *testing.T) {
	path, out := seedStore(t)

	t.Run("lists runs as a table", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		globals.Config.Store.Path = path

		cmd := &RunsCmd{Limit: 10}
		require.NoError(t, cmd.Run(globals))

		assert.Contains(t, stdout.String(), out.RunID[:8])
		assert.Contains(t, stdout.String(), "/tmp/crasher")
	})

	t.Run("lists runs as NDJSON", func(t *testing.T) {
		globals, stdout, _ := testGlobals("ndjson")
		globals.Config.Store.Path = path

		cmd := &RunsCmd{Limit: 10}
		require.NoError(t, cmd.Run(globals))

		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &rec))
		assert.Equal(t, "run", rec["type"])
		assert.Equal(t, out.RunID, rec["run_id"])
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		globals.Config.Store.Path = filepath.Join(t.TempDir(), "empty.db")

		cmd := &RunsCmd{Limit: 10}
		require.NoError(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), "No saved runs.")
	})
}

func TestShowCmd_Run(t *testing.T) {
	path, out := seedStore(t)

	t.Run("shows a run by full ID", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		globals.Config.Store.Path = path

		cmd := &ShowCmd{RunID: out.RunID}
		require.NoError(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), "-exec-run")
	})

	t.Run("shows a run by prefix", func(t *testing.T) {
		globals, stdout, _ := testGlobals("text")
		globals.Config.Store.Path = path

		cmd := &ShowCmd{RunID: out.RunID[:8]}
		require.NoError(t, cmd.Run(globals))
		assert.Contains(t, stdout.String(), "segfault after parsing")
	})

	t.Run("unknown run fails", func(t *testing.T) {
		globals, _, stderr := testGlobals("text")
		globals.Config.Store.Path = path

		cmd := &ShowCmd{RunID: "ffffffff"}
		require.Error(t, cmd.Run(globals))
		assert.Contains(t, stderr.String(), "RUN_NOT_FOUND")
	})
}

func TestResolvedFormat(t *testing.T) {
	globals, _, _ := testGlobals("auto")
	// A bytes.Buffer is not a terminal file, so auto resolves to text.
	assert.Equal(t, "text", globals.ResolvedFormat())

	globals.Format = "ndjson"
	assert.Equal(t, "ndjson", globals.ResolvedFormat())
}
