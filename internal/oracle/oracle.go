// Package oracle talks to the decision-making model that proposes GDB/MI
// commands, and guards the debugger from the model's free-text output.
package oracle

import "context"

// Provider is the external decision oracle: given accumulated session
// history rendered as a prompt, it proposes the next MI command or the stop
// sentinel. Implementations may stream internally but always reduce to a
// single final text.
type Provider interface {
	Propose(ctx context.Context, prompt string) (string, error)
}
