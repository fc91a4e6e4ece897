package cli

import (
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/d0rbu/llamastack-austin/internal/config"
	"github.com/d0rbu/llamastack-austin/internal/output"
	"github.com/d0rbu/llamastack-austin/internal/store"
	"github.com/d0rbu/llamastack-austin/internal/tui"
)

// RunsCmd lists saved debug runs.
type RunsCmd struct {
	Limit int  `default:"20" help:"Maximum runs to list"`
	UI    bool `help:"Browse runs in an interactive TUI"`
}

// ShowCmd prints the transcript of one saved run.
type ShowCmd struct {
	RunID string `arg:"" help:"Run ID (or unique prefix) to show"`
}

func storePath() (string, error) {
	return config.DefaultStorePath()
}

func openStore(globals *Globals) (*store.Store, error) {
	path := globals.Config.Store.Path
	if path == "" {
		var err error
		path, err = storePath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(path)
}

// Run executes the runs command
func (c *RunsCmd) Run(globals *Globals) error {
	st, err := openStore(globals)
	if err != nil {
		return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
	}
	defer st.Close()

	if c.UI {
		return tui.Run(st)
	}

	runs, err := st.ListRuns(c.Limit)
	if err != nil {
		return outputErrorCommon(globals, "STORE_READ_FAILED", err.Error())
	}

	if globals.ResolvedFormat() == "ndjson" {
		w := output.NewNDJSONWriter(globals.Stdout)
		for _, run := range runs {
			if err := w.WriteRunSummary(run); err != nil {
				return err
			}
		}
		return nil
	}

	if len(runs) == 0 {
		fmt.Fprintln(globals.Stdout, "No saved runs.")
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("Run", "Executable", "Status", "Steps", "Started")
	for _, run := range runs {
		table.Append([]string{
			run.RunID[:8],
			run.Executable,
			run.Status,
			fmt.Sprintf("%d", run.Steps),
			run.StartedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return table.Render()
}

// Run executes the show command
func (c *ShowCmd) Run(globals *Globals) error {
	st, err := openStore(globals)
	if err != nil {
		return outputErrorCommon(globals, "STORE_UNAVAILABLE", err.Error())
	}
	defer st.Close()

	runID, err := resolveRunID(st, c.RunID)
	if err != nil {
		return outputErrorCommon(globals, "RUN_NOT_FOUND", err.Error())
	}

	out, err := st.LoadOutcome(runID)
	if err != nil {
		return outputErrorCommon(globals, "RUN_NOT_FOUND",
			fmt.Sprintf("no saved run %s", c.RunID))
	}

	if globals.ResolvedFormat() == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteOutcome(out)
	}
	return output.WriteTranscript(globals.Stdout, out)
}

// resolveRunID expands a unique run ID prefix to the full ID.
func resolveRunID(st *store.Store, prefix string) (string, error) {
	runs, err := st.ListRuns(1000)
	if err != nil {
		return "", err
	}
	var match string
	for _, run := range runs {
		if run.RunID == prefix {
			return prefix, nil
		}
		if len(prefix) >= 4 && len(run.RunID) > len(prefix) && run.RunID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("run ID prefix %q is ambiguous", prefix)
			}
			match = run.RunID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no saved run matches %q", prefix)
	}
	return match, nil
}
