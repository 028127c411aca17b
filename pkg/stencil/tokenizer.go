package stencil

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies the form of an expression token
type TokenKind int

const (
	// TokenLiteral is a malformed token left untouched in the text
	TokenLiteral TokenKind = iota
	// TokenPlainVariable is a bare name: ${Name}
	TokenPlainVariable
	// TokenPropertyPath is a dotted path: ${Customer.Address.City}
	TokenPropertyPath
	// TokenArrayIndex is an indexed path: ${Items[0]} or ${Items[0].Title}
	TokenArrayIndex
	// TokenFunctionCall is a namespaced call: ${ns.Image(Items[0].Url, width: 200)}
	TokenFunctionCall
	// TokenExpression is anything else, handed to the expression engine: ${Price * 1.2}
	TokenExpression
)

func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "Literal"
	case TokenPlainVariable:
		return "PlainVariable"
	case TokenPropertyPath:
		return "PropertyPath"
	case TokenArrayIndex:
		return "ArrayIndex"
	case TokenFunctionCall:
		return "FunctionCall"
	case TokenExpression:
		return "Expression"
	default:
		return "Unknown"
	}
}

const (
	tokenOpen  = "${"
	tokenClose = '}'
)

// Token is one parsed ${...} occurrence. Start and End are byte offsets of the
// whole token (delimiters included) in the text it was extracted from.
type Token struct {
	Kind  TokenKind
	Raw   string
	Start int
	End   int

	// Expr is the trimmed body without the :format suffix
	Expr   string
	Format string

	// Name is the variable name (PlainVariable) or the array name (ArrayIndex)
	Name string
	// Path holds the segments of a PropertyPath
	Path []string
	// Index and PropertyPath describe an ArrayIndex token
	Index        int
	PropertyPath string

	// Namespace, Function and Args describe a FunctionCall token
	Namespace string
	Function  string
	RawArgs   string
	Args      []Argument

	// Err explains why a token is a TokenLiteral
	Err error
}

// QualifiedName returns "ns.Name" for function calls
func (t Token) QualifiedName() string {
	return t.Namespace + "." + t.Function
}

// ExtractTokens scans text for ${...} tokens. It never fails: a malformed
// token comes back as a TokenLiteral spanning the text that could not be parsed.
// Function calls are recognized only under namespace.
func ExtractTokens(text, namespace string) []Token {
	var tokens []Token
	pos := 0
	for {
		rel := strings.Index(text[pos:], tokenOpen)
		if rel < 0 {
			break
		}
		start := pos + rel
		end, ok := findTokenEnd(text, start+len(tokenOpen))
		if !ok {
			// unclosed, or interrupted by another ${
			tokens = append(tokens, Token{
				Kind:  TokenLiteral,
				Raw:   text[start:end],
				Start: start,
				End:   end,
				Err:   NewParseError("unterminated expression", text[start:end], start),
			})
			pos = end
			continue
		}
		tok := parseTokenBody(text[start+len(tokenOpen):end-1], namespace)
		tok.Raw = text[start:end]
		tok.Start = start
		tok.End = end
		if tok.Kind == TokenLiteral && tok.Err == nil {
			tok.Err = NewParseError("empty expression", tok.Raw, start)
		}
		tokens = append(tokens, tok)
		pos = end
	}
	return tokens
}

// findTokenEnd returns the offset just past the closing brace of a token whose
// body starts at from. Braces nest and quoted strings are skipped. When the token
// is not closed, ok is false and end is where scanning stopped.
func findTokenEnd(text string, from int) (end int, ok bool) {
	depth := 0
	var quote byte
	for i := from; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(text) {
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
		case '$':
			if i+1 < len(text) && text[i+1] == '{' {
				return i, false
			}
		case '{':
			depth++
		case tokenClose:
			if depth == 0 {
				return i + 1, true
			}
			depth--
		}
	}
	return len(text), false
}

// parseTokenBody classifies the body of a token
func parseTokenBody(body, namespace string) Token {
	expr, format := splitFormat(strings.TrimSpace(body))
	tok := Token{Expr: expr, Format: format}
	if expr == "" {
		tok.Kind = TokenLiteral
		return tok
	}

	if ns, fn, args, ok := parseFunctionCall(expr, namespace); ok {
		tok.Kind = TokenFunctionCall
		tok.Namespace = ns
		tok.Function = fn
		tok.RawArgs = args
		tok.Args = ParseArguments(args)
		return tok
	}

	if segs, ok := parsePath(expr); ok {
		classifyPath(&tok, segs)
		return tok
	}

	tok.Kind = TokenExpression
	return tok
}

// splitFormat separates a trailing :format suffix. The first colon at nesting
// depth zero outside quotes starts the format, unless a ternary '?' precedes it.
func splitFormat(s string) (string, string) {
	depth := 0
	var quote byte
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
		case '?':
			if depth == 0 {
				return s, ""
			}
		case ':':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s, ""
}

// pathSegment is one step of a path: a property name or an index
type pathSegment struct {
	name    string
	index   int
	isIndex bool
}

// parsePath parses ident ( '.' ident | '[' ['-'] digits ']' )*. A negative
// index parses; resolving it always yields OutOfRange.
func parsePath(s string) ([]pathSegment, bool) {
	var segs []pathSegment
	i := 0
	ident, n := scanIdentifier(s, i)
	if n == 0 {
		return nil, false
	}
	segs = append(segs, pathSegment{name: ident})
	i += n
	for i < len(s) {
		switch s[i] {
		case '.':
			ident, n := scanIdentifier(s, i+1)
			if n == 0 {
				return nil, false
			}
			segs = append(segs, pathSegment{name: ident})
			i += 1 + n
		case '[':
			closeIdx := strings.IndexByte(s[i:], ']')
			if closeIdx < 0 {
				return nil, false
			}
			idx, err := strconv.Atoi(strings.TrimSpace(s[i+1 : i+closeIdx]))
			if err != nil {
				return nil, false
			}
			segs = append(segs, pathSegment{index: idx, isIndex: true})
			i += closeIdx + 1
		default:
			return nil, false
		}
	}
	return segs, true
}

// classifyPath fills tok from parsed path segments. An index anywhere in the
// path makes it an ArrayIndex token; the array is everything before the first index.
func classifyPath(tok *Token, segs []pathSegment) {
	first := -1
	for i, seg := range segs {
		if seg.isIndex {
			first = i
			break
		}
	}
	if first < 0 {
		if len(segs) == 1 {
			tok.Kind = TokenPlainVariable
			tok.Name = segs[0].name
			return
		}
		tok.Kind = TokenPropertyPath
		for _, seg := range segs {
			tok.Path = append(tok.Path, seg.name)
		}
		tok.Name = segs[0].name
		return
	}

	names := make([]string, 0, first)
	for _, seg := range segs[:first] {
		names = append(names, seg.name)
	}
	tok.Kind = TokenArrayIndex
	tok.Name = strings.Join(names, ".")
	tok.Index = segs[first].index
	tok.PropertyPath = formatPath(segs[first+1:])
}

// formatPath renders segments back to "a.b[0].c"
func formatPath(segs []pathSegment) string {
	var sb strings.Builder
	for _, seg := range segs {
		if seg.isIndex {
			sb.WriteString("[")
			sb.WriteString(strconv.Itoa(seg.index))
			sb.WriteString("]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(seg.name)
	}
	return sb.String()
}

// parseFunctionCall recognizes ns.Name( ... ) where the closing parenthesis
// matching the first opening one is the last character.
func parseFunctionCall(s, namespace string) (ns, fn, args string, ok bool) {
	if namespace == "" || !strings.HasPrefix(s, namespace+".") {
		return "", "", "", false
	}
	rest := s[len(namespace)+1:]
	ident, n := scanIdentifier(rest, 0)
	if n == 0 {
		return "", "", "", false
	}
	after := strings.TrimLeft(rest[n:], " \t")
	if !strings.HasPrefix(after, "(") {
		return "", "", "", false
	}
	closeIdx := matchingParen(after, 0)
	if closeIdx != len(after)-1 {
		return "", "", "", false
	}
	return namespace, ident, after[1:closeIdx], true
}

// matchingParen returns the index of the parenthesis closing the one at open,
// skipping quoted strings, or -1
func matchingParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
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
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// scanIdentifier reads an identifier at s[i:] and returns it with its byte length
func scanIdentifier(s string, i int) (string, int) {
	j := i
	for j < len(s) {
		r, size := utf8.DecodeRuneInString(s[j:])
		if r == '_' || unicode.IsLetter(r) || (j > i && unicode.IsDigit(r)) {
			j += size
			continue
		}
		break
	}
	return s[i:j], j - i
}

func isIdentifier(s string) bool {
	_, n := scanIdentifier(s, 0)
	return n > 0 && n == len(s)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
