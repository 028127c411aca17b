package stencil

import (
	"strings"
)

// Argument is one parsed function-call argument
type Argument struct {
	// Raw is the trimmed argument text as written
	Raw string
	// Key is set for keyword arguments (width: 200)
	Key string
	// Value is the argument text without the key, unescaped if it was quoted
	Value string
	// Quoted reports whether Value came from a string literal
	Quoted bool
}

// String returns the argument as written
func (a Argument) String() string {
	return a.Raw
}

// ParseArguments splits a raw argument list on commas outside quotes and
// brackets. Each argument is trimmed and, if quoted, unescaped.
func ParseArguments(raw string) []Argument {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var args []Argument
	for _, part := range splitTopLevel(raw, ',') {
		args = append(args, parseArgument(strings.TrimSpace(part)))
	}
	return args
}

// splitTopLevel splits s on sep where sep is outside quotes and nesting
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

func parseArgument(s string) Argument {
	arg := Argument{Raw: s, Value: s}
	if key, n := scanIdentifier(s, 0); n > 0 {
		rest := strings.TrimLeft(s[n:], " \t")
		if strings.HasPrefix(rest, ":") {
			arg.Key = key
			arg.Value = strings.TrimSpace(rest[1:])
		}
	}
	if unq, ok := unquote(arg.Value); ok {
		arg.Value = unq
		arg.Quoted = true
	}
	return arg
}

// unquote strips matching single or double quotes and resolves \" \' and \\
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return s, false
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return s, false
	}
	body := s[1 : len(s)-1]
	if !strings.Contains(body, `\`) {
		return body, true
	}
	var sb strings.Builder
	sb.Grow(len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			switch body[i+1] {
			case '"', '\'', '\\':
				sb.WriteByte(body[i+1])
				i++
				continue
			}
		}
		sb.WriteByte(c)
	}
	return sb.String(), true
}

// keyword returns the value of the named keyword argument, matched case-insensitively
func keyword(args []Argument, key string) (Argument, bool) {
	for _, a := range args {
		if a.Key != "" && strings.EqualFold(a.Key, key) {
			return a, true
		}
	}
	return Argument{}, false
}

// positional returns the arguments without a key, in order
func positional(args []Argument) []Argument {
	var out []Argument
	for _, a := range args {
		if a.Key == "" {
			out = append(out, a)
		}
	}
	return out
}
