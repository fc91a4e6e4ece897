package mi

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a decoded GDB/MI record.
type Kind string

const (
	// KindResult is a synchronous result record ("^done", "^error", ...),
	// optionally prefixed with the token of the command that triggered it.
	KindResult Kind = "result"
	// KindNotify covers async records ("*stopped", "=thread-group-exited", ...).
	KindNotify Kind = "notify"
	// KindStream covers console/log/target stream output ("~", "&", "@").
	// Stream records carry no control semantics and exist for display only.
	KindStream Kind = "stream"
	// KindUnknown is synthesized for lines that are not well-formed MI records,
	// so unexpected subprocess chatter can never wedge the control loop.
	KindUnknown Kind = "unknown"
)

// Result status classes.
const (
	ClassDone      = "done"
	ClassRunning   = "running"
	ClassConnected = "connected"
	ClassError     = "error"
	ClassExit      = "exit"
)

// Async classes the liveness policy cares about.
const (
	ClassStopped         = "stopped"
	ClassThreadGroupExit = "thread-group-exited"
)

// NoToken marks an event that carries no correlation token.
const NoToken = -1

// Event is a single decoded incoming MI record. Events are produced in strict
// arrival order and never reordered or dropped before correlation.
type Event struct {
	Kind    Kind           `json:"kind"`
	Token   int            `json:"token"` // NoToken when absent
	Class   string         `json:"class,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Raw     string         `json:"raw"`
}

// HasToken reports whether the event carries a correlation token.
func (e *Event) HasToken() bool { return e.Token != NoToken }

// Reason returns the payload "reason" string, if present.
func (e *Event) Reason() string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload["reason"].(string)
	return s
}

// Summary renders a compact one-line description for transcripts and prompts.
func (e *Event) Summary() string {
	switch e.Kind {
	case KindStream:
		text, _ := e.Payload["text"].(string)
		return fmt.Sprintf("stream: %s", strings.TrimRight(text, "\n"))
	case KindUnknown:
		return fmt.Sprintf("unparsed: %s", e.Raw)
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" ")
	b.WriteString(e.Class)
	if len(e.Payload) > 0 {
		b.WriteString(" ")
		b.WriteString(renderPayload(e.Payload))
	}
	return b.String()
}

// renderPayload flattens a payload bag deterministically (sorted keys) so
// summaries are stable across runs.
func renderPayload(p map[string]any) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, renderValue(p[k])))
	}
	return strings.Join(parts, " ")
}

func renderValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case map[string]any:
		return "{" + renderPayload(t) + "}"
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, renderValue(item))
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return fmt.Sprintf("%v", v)
	}
}
