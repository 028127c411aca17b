package render

import (
	"sort"
	"unicode/utf8"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// Replacement describes new text for the byte span [Start, End) of a
// paragraph's logical text
type Replacement struct {
	Start int
	End   int
	Text  string
}

// ReplaceSpan writes replacement over [start, end) of the paragraph's logical
// text. ok is false when the span cannot be mapped onto the runs; the paragraph
// is left untouched in that case.
func ReplaceSpan(para *xml.Paragraph, start, end int, replacement string) (changed bool, ok bool) {
	m := BuildRunMap(para)
	if start < 0 || end < start || end > len(m.Text) {
		return false, false
	}
	idx := m.Covering(start, end)
	if len(idx) == 0 {
		return false, false
	}

	first := m.Segments[idx[0]]
	last := m.Segments[idx[len(idx)-1]]

	if len(idx) == 1 {
		old := first.Run.Text
		updated := old[:start-first.Start] + replacement + old[end-first.Start:]
		if updated == old {
			return false, true
		}
		first.Run.SetText(updated)
		return true, true
	}

	combined := first.Run.Text[:start-first.Start] + replacement + last.Run.Text[end-last.Start:]
	weights := make([]int, len(idx))
	for i, segIdx := range idx {
		weights[i] = utf8.RuneCountInString(m.Segments[segIdx].Run.Text)
	}
	pieces := Distribute(combined, weights)
	for i, segIdx := range idx {
		run := m.Segments[segIdx].Run
		if run.Text != pieces[i] {
			changed = true
		}
		run.SetText(pieces[i])
	}
	return changed, true
}

// Distribute splits text into len(weights) pieces whose rune counts follow the
// weights proportionally. The last piece absorbs the rounding remainder, so the
// pieces always concatenate back to text exactly. Rune boundaries are respected.
func Distribute(text string, weights []int) []string {
	n := len(weights)
	if n == 0 {
		return nil
	}
	pieces := make([]string, n)
	total := 0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		pieces[n-1] = text
		return pieces
	}

	runes := []rune(text)
	cursor := 0
	for i := 0; i < n-1; i++ {
		w := weights[i]
		if w < 0 {
			w = 0
		}
		count := len(runes) * w / total
		if cursor+count > len(runes) {
			count = len(runes) - cursor
		}
		pieces[i] = string(runes[cursor : cursor+count])
		cursor += count
	}
	pieces[n-1] = string(runes[cursor:])
	return pieces
}

// Rebuild is the degraded fallback: the whole text goes into the first run and
// the remaining runs are cleared. A paragraph without runs gets a new one.
func Rebuild(para *xml.Paragraph, text string) {
	runs := para.Runs()
	if len(runs) == 0 {
		para.Content = append(para.Content, xml.NewRun(text, nil))
		return
	}
	runs[0].SetText(text)
	for _, r := range runs[1:] {
		r.SetText("")
	}
}

// ApplyReplacements applies replacements to the paragraph from right to left so
// earlier offsets stay valid. Replacements must not overlap. It reports whether
// any run text changed and whether the degraded fallback was used.
func ApplyReplacements(para *xml.Paragraph, replacements []Replacement) (changed bool, rebuilt bool) {
	if len(replacements) == 0 {
		return false, false
	}
	original := para.GetText()
	sorted := append([]Replacement(nil), replacements...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	for _, r := range sorted {
		c, ok := ReplaceSpan(para, r.Start, r.End, r.Text)
		if !ok {
			Rebuild(para, applyToString(original, sorted))
			return true, true
		}
		changed = changed || c
	}
	return changed, false
}

// applyToString applies replacements sorted by descending start to s.
// Out-of-bounds replacements are skipped.
func applyToString(s string, sortedDesc []Replacement) string {
	for _, r := range sortedDesc {
		if r.Start < 0 || r.End < r.Start || r.End > len(s) {
			continue
		}
		s = s[:r.Start] + r.Text + s[r.End:]
	}
	return s
}
