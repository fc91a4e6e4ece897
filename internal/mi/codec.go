package mi

import (
	"fmt"
	"strings"
)

// Encode builds the outgoing wire line for a command: the decimal correlation
// token immediately followed by the command text. The caller appends the
// newline when writing.
func Encode(token int, command string) string {
	return fmt.Sprintf("%d%s", token, command)
}

// Decode parses a single incoming line into an Event. It returns nil for
// lines that carry no control information at all: blank lines and the
// "(gdb)" ready prompt. Decoding never fails — anything that is not a
// well-formed MI record becomes a KindUnknown event carrying the raw text.
func Decode(line string) *Event {
	trimmed := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return nil
	}
	if strings.TrimSpace(trimmed) == "(gdb)" {
		return nil
	}

	// Optional leading token: decimal digits before the record marker.
	token := NoToken
	rest := trimmed
	if i := leadingDigits(trimmed); i > 0 {
		// Tokens are only meaningful on result records; a bare number line
		// is subprocess chatter and falls through to KindUnknown below.
		if i < len(trimmed) && trimmed[i] == '^' {
			token = parseInt(trimmed[:i])
			rest = trimmed[i:]
		}
	}

	switch rest[0] {
	case '^':
		class, payload := splitClassPayload(rest[1:])
		return &Event{Kind: KindResult, Token: token, Class: class, Payload: payload, Raw: trimmed}
	case '*', '=':
		class, payload := splitClassPayload(rest[1:])
		return &Event{Kind: KindNotify, Token: NoToken, Class: class, Payload: payload, Raw: trimmed}
	case '~', '&', '@':
		text, ok := parseCString(rest[1:])
		if !ok {
			text = rest[1:]
		}
		return &Event{
			Kind:    KindStream,
			Token:   NoToken,
			Class:   streamClass(rest[0]),
			Payload: map[string]any{"text": text},
			Raw:     trimmed,
		}
	}

	return &Event{Kind: KindUnknown, Token: NoToken, Payload: map[string]any{}, Raw: trimmed}
}

// DecodeAll decodes a batch of lines, discarding non-record lines.
func DecodeAll(lines []string) []Event {
	events := make([]Event, 0, len(lines))
	for _, line := range lines {
		if ev := Decode(line); ev != nil {
			events = append(events, *ev)
		}
	}
	return events
}

func streamClass(marker byte) string {
	switch marker {
	case '~':
		return "console"
	case '&':
		return "log"
	case '@':
		return "target"
	}
	return ""
}

// splitClassPayload separates the record class from its optional payload,
// e.g. `stopped,reason="exited-normally"` or `done`.
func splitClassPayload(s string) (string, map[string]any) {
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return s, map[string]any{}
	}
	class := s[:comma]
	payload := parsePayload(s[comma+1:])
	return class, payload
}

func leadingDigits(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}

func parseInt(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
