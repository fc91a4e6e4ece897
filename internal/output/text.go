package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/d0rbu/llamastack-austin/internal/loop"
)

// WriteTranscript renders a finished session for human reading: a header,
// each step's command and output, and a closing summary table.
func WriteTranscript(w io.Writer, out *loop.Outcome) error {
	fmt.Fprintf(w, "Debug session %s\n", out.RunID)
	fmt.Fprintf(w, "Executable: %s\n", out.Executable)
	fmt.Fprintf(w, "Bug: %s\n", out.BugDescription)
	fmt.Fprintln(w, strings.Repeat("─", 60))

	for _, rec := range out.Steps {
		command := rec.Command
		if command == "" {
			command = "(none)"
		}
		fmt.Fprintf(w, "Step %d: %s\n", rec.Step, command)
		fmt.Fprintln(w, rec.Summary)
		fmt.Fprintln(w, strings.Repeat("─", 60))
	}

	fmt.Fprintf(w, "Status: %s\n", out.Status)
	if out.Error != "" {
		fmt.Fprintf(w, "Detail: %s\n", out.Error)
	}
	fmt.Fprintf(w, "Steps attempted: %d\n\n", out.StepsAttempted)

	if len(out.Steps) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Step", "Command", "Terminated", "Duration")
	for _, rec := range out.Steps {
		command := rec.Command
		if command == "" {
			command = "(none)"
		}
		table.Append([]string{
			strconv.Itoa(rec.Step),
			command,
			strconv.FormatBool(rec.Terminated),
			rec.Duration.Truncate(1e6).String(),
		})
	}
	return table.Render()
}
