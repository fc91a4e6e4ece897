package oracle

import (
	"regexp"
	"strings"
)

// StopSentinel is the literal the oracle returns when it considers the
// investigation complete.
const StopSentinel = "DONE"

// DecisionKind classifies what the oracle's raw text turned out to be.
type DecisionKind int

const (
	// DecisionCommand means the text is a well-formed MI command.
	DecisionCommand DecisionKind = iota
	// DecisionStop means the text is exactly the stop sentinel.
	DecisionStop
	// DecisionInvalid means the text cannot be forwarded to the debugger.
	DecisionInvalid
)

// Decision is the validator's verdict on one oracle response.
type Decision struct {
	Kind    DecisionKind
	Command string // trimmed MI command, set only for DecisionCommand
	Raw     string // original text, kept for diagnostics
}

// MI command names: a leading dash followed by identifier characters,
// optionally a whitespace-separated argument tail.
var commandPattern = regexp.MustCompile(`^-[a-zA-Z0-9-]+(\s+\S.*)?$`)

// Validate screens raw oracle output before it can reach the debugger's
// input stream. The oracle is an untrusted free-text generator: it may
// produce prose, multi-command blobs, or formatting noise, none of which may
// be forwarded unvalidated.
func Validate(raw string) Decision {
	text := strings.TrimSpace(raw)
	if text == StopSentinel {
		return Decision{Kind: DecisionStop, Raw: raw}
	}
	if commandPattern.MatchString(text) && !strings.ContainsAny(text, "\n\r") {
		return Decision{Kind: DecisionCommand, Command: text, Raw: raw}
	}
	return Decision{Kind: DecisionInvalid, Raw: raw}
}
