package oracle

import (
	"fmt"
	"strings"

	"github.com/d0rbu/llamastack-austin/internal/history"
)

// Instructions is the system prompt establishing the oracle's role and the
// exact response contract the validator enforces.
const Instructions = `You are an expert C/C++ debugger using GDB's Machine Interface (MI).
Your goal is to help the user find the root cause of a bug in their program.
The user provides an initial bug description and the path to an executable.
In each turn you are shown recent MI commands sent and the corresponding GDB MI output.
Based on the bug description and the GDB history, suggest the *single* next GDB MI command to execute.
Focus on commands that help diagnose crashes, inspect state, and step through execution.
Prioritize commands like: -exec-run, -exec-continue, -exec-next, -exec-step, -stack-list-frames, -stack-list-variables --simple 1, -data-evaluate-expression <var_name>, -break-insert <location>.
Format your response *only* as the GDB MI command itself, without any explanation or surrounding text.
Example response: -exec-run
Another example: -break-insert main
Another example: -stack-list-frames
If you believe the root cause is likely found or GDB has exited, respond with: DONE`

// BuildPrompt renders the bug description plus the recent history view into
// the user prompt for one oracle turn. Only the window's bounded Recent view
// is passed in; older steps stay out of the prompt to keep it small.
func BuildPrompt(bugDescription string, recent []history.StepRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Initial Bug Description: %s\n\n", bugDescription)
	b.WriteString("GDB MI Interaction History:\n")
	if len(recent) == 0 {
		b.WriteString("(No commands executed yet)\n")
	}
	for _, rec := range recent {
		command := rec.Command
		if command == "" {
			command = "(none)"
		}
		fmt.Fprintf(&b, "-> Command: %s\n<- Output:\n%s\n", command, rec.Summary)
	}
	b.WriteString("\nSuggest the next GDB MI command:")
	return b.String()
}
