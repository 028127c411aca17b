package stencil

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/render"
)

// ArrayReference is one name[index] occurrence inside a token, used for
// overflow analysis and for shifting indices when a row is paginated.
type ArrayReference struct {
	ArrayName    string
	Index        int
	PropertyPath string
	// Pattern is the source text of the reference, e.g. "Items[2].Title"
	Pattern string
	// Start and End are byte offsets of Pattern in the scanned text
	Start int
	End   int

	// byte span of the index digits
	indexStart int
	indexEnd   int
}

// FindArrayReferences returns every array reference inside the ${...} tokens
// of text, including those nested in function-call arguments and expressions.
// Quoted strings are not scanned.
func FindArrayReferences(text, namespace string) []ArrayReference {
	var refs []ArrayReference
	for _, tok := range ExtractTokens(text, namespace) {
		if tok.Kind == TokenLiteral {
			continue
		}
		bodyStart := tok.Start + len(tokenOpen)
		refs = append(refs, scanArrayReferences(text[bodyStart:tok.End-1], bodyStart)...)
	}
	return refs
}

// scanArrayReferences finds path[digits] patterns in s. Offsets are shifted by base.
func scanArrayReferences(s string, base int) []ArrayReference {
	var refs []ArrayReference
	var quote byte
	for i := 0; i < len(s); {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i += 2
				continue
			}
			if c == quote {
				quote = 0
			}
			i++
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			i++
			continue
		}
		if !startsPath(s, i) {
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			continue
		}
		ref, end, ok := scanReferenceAt(s, i)
		if ok {
			ref.Start += base
			ref.End += base
			ref.indexStart += base
			ref.indexEnd += base
			refs = append(refs, ref)
		}
		i = end
	}
	return refs
}

// startsPath reports whether an identifier path begins at s[i]
func startsPath(s string, i int) bool {
	r, _ := utf8.DecodeRuneInString(s[i:])
	if !isIdentRune(r) || (r >= '0' && r <= '9') {
		return false
	}
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isIdentRune(prev) && prev != '.' && prev != '#'
}

// scanReferenceAt parses ident(.ident)* [-digits] (.ident | [digits])* at s[i].
// It returns the index just past what it consumed.
func scanReferenceAt(s string, i int) (ArrayReference, int, bool) {
	start := i
	var names []string
	for {
		ident, n := scanIdentifier(s, i)
		if n == 0 {
			return ArrayReference{}, max(i, start+1), false
		}
		names = append(names, ident)
		i += n
		if i < len(s) && s[i] == '.' {
			i++
			continue
		}
		break
	}
	open := skipSpaces(s, i)
	if open >= len(s) || s[open] != '[' {
		return ArrayReference{}, i, false
	}
	numStart := skipSpaces(s, open+1)
	digitsStart := numStart
	if digitsStart < len(s) && s[digitsStart] == '-' {
		digitsStart++
	}
	digitsEnd := digitsStart
	for digitsEnd < len(s) && s[digitsEnd] >= '0' && s[digitsEnd] <= '9' {
		digitsEnd++
	}
	closeIdx := skipSpaces(s, digitsEnd)
	if digitsEnd == digitsStart || closeIdx >= len(s) || s[closeIdx] != ']' {
		return ArrayReference{}, open + 1, false
	}
	index, err := strconv.Atoi(s[numStart:digitsEnd])
	if err != nil {
		return ArrayReference{}, closeIdx + 1, false
	}
	i = closeIdx + 1

	pathStart := i
	for i < len(s) {
		if s[i] == '.' {
			_, n := scanIdentifier(s, i+1)
			if n == 0 {
				break
			}
			i += 1 + n
			continue
		}
		if s[i] == '[' {
			j := i + 1
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			if j == i+1 || j >= len(s) || s[j] != ']' {
				break
			}
			i = j + 1
			continue
		}
		break
	}

	return ArrayReference{
		ArrayName:    strings.Join(names, "."),
		Index:        index,
		PropertyPath: strings.TrimPrefix(s[pathStart:i], "."),
		Pattern:      s[start:i],
		Start:        start,
		End:          i,
		indexStart:   numStart,
		indexEnd:     digitsEnd,
	}, i, true
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// ShiftArrayIndices rewrites every reference to arrayName[i] inside tokens of
// text to arrayName[i+delta]. If any shifted index would fall below zero or above
// maxIndex, text is returned unchanged with ErrIndexOutOfBounds.
func ShiftArrayIndices(text, arrayName string, delta, maxIndex int, namespace string) (string, error) {
	edits, err := indexShifts(text, arrayName, delta, maxIndex, namespace)
	if err != nil || len(edits) == 0 {
		return text, err
	}
	var sb strings.Builder
	last := 0
	for _, ed := range edits {
		sb.WriteString(text[last:ed.Start])
		sb.WriteString(ed.Text)
		last = ed.End
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

// indexShifts returns the index rewrites for arrayName in text, in text order.
// Nothing is returned unless every shifted index stays within [0, maxIndex].
func indexShifts(text, arrayName string, delta, maxIndex int, namespace string) ([]render.Replacement, error) {
	var edits []render.Replacement
	for _, ref := range FindArrayReferences(text, namespace) {
		if ref.ArrayName != arrayName {
			continue
		}
		shifted := ref.Index + delta
		if shifted < 0 || shifted > maxIndex {
			return nil, fmt.Errorf("%w: %s[%d] shifted by %d", ErrIndexOutOfBounds, arrayName, ref.Index, delta)
		}
		edits = append(edits, render.Replacement{Start: ref.indexStart, End: ref.indexEnd, Text: strconv.Itoa(shifted)})
	}
	return edits, nil
}
