package mi

import "strings"

// parsePayload parses the comma-separated `key=value` body of an MI record
// into a nested map. Parsing is best-effort: it understands c-strings,
// tuples `{...}` and lists `[...]`; anything it cannot make sense of is kept
// as the raw remaining text under the "_raw" key so no information is lost.
func parsePayload(s string) map[string]any {
	p := &payloadParser{input: s}
	result := p.parseResults()
	if p.pos < len(p.input) {
		result["_raw"] = p.input[p.pos:]
	}
	return result
}

type payloadParser struct {
	input string
	pos   int
}

// parseResults reads `key=value,key=value,...` until the input is exhausted
// or something unparsable appears.
func (p *payloadParser) parseResults() map[string]any {
	out := map[string]any{}
	for p.pos < len(p.input) {
		key, ok := p.parseKey()
		if !ok {
			break
		}
		value, ok := p.parseValue()
		if !ok {
			break
		}
		out[key] = value
		if !p.consume(',') {
			break
		}
	}
	return out
}

func (p *payloadParser) parseKey() (string, bool) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '=' {
			key := p.input[start:p.pos]
			p.pos++
			return key, key != ""
		}
		if !isKeyChar(c) {
			return "", false
		}
		p.pos++
	}
	return "", false
}

func (p *payloadParser) parseValue() (any, bool) {
	if p.pos >= len(p.input) {
		return nil, false
	}
	switch p.input[p.pos] {
	case '"':
		s, ok := parseCString(p.input[p.pos:])
		if !ok {
			return nil, false
		}
		p.pos += cstringLen(p.input[p.pos:])
		return s, true
	case '{':
		return p.parseTuple()
	case '[':
		return p.parseList()
	}
	// Bare values happen in practice (e.g. version numbers); read until the
	// next structural character.
	start := p.pos
	for p.pos < len(p.input) && !strings.ContainsRune(",{}[]", rune(p.input[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return nil, false
	}
	return p.input[start:p.pos], true
}

func (p *payloadParser) parseTuple() (any, bool) {
	p.pos++ // consume '{'
	out := p.parseResults()
	if !p.consume('}') {
		return nil, false
	}
	return out, true
}

func (p *payloadParser) parseList() (any, bool) {
	p.pos++ // consume '['
	var out []any
	for p.pos < len(p.input) && p.input[p.pos] != ']' {
		// List elements are either plain values or key=value results.
		if save := p.pos; isKeyStart(p.input[p.pos]) {
			if key, ok := p.parseKey(); ok {
				value, ok := p.parseValue()
				if !ok {
					return nil, false
				}
				out = append(out, map[string]any{key: value})
				if !p.consume(',') {
					break
				}
				continue
			}
			p.pos = save
		}
		value, ok := p.parseValue()
		if !ok {
			return nil, false
		}
		out = append(out, value)
		if !p.consume(',') {
			break
		}
	}
	if !p.consume(']') {
		return nil, false
	}
	if out == nil {
		out = []any{}
	}
	return out, true
}

func (p *payloadParser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func isKeyStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isKeyChar(c byte) bool {
	return isKeyStart(c) || (c >= '0' && c <= '9') || c == '-'
}

// parseCString decodes a double-quoted MI string with backslash escapes.
func parseCString(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' {
		return "", false
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
			continue
		}
		if c == '"' {
			return b.String(), true
		}
		b.WriteByte(c)
	}
	return "", false
}

// cstringLen returns the consumed length of the leading c-string, including
// both quotes. Callers must have validated with parseCString first.
func cstringLen(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			return i + 1
		}
	}
	return len(s)
}
