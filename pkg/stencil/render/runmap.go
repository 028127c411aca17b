package render

import (
	"strings"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// Segment ties a run to the part of the logical text it contributes.
// Start and Length are byte offsets into RunMap.Text.
type Segment struct {
	Run    *xml.Run
	Start  int
	Length int
}

// End returns the offset just past the segment
func (s Segment) End() int {
	return s.Start + s.Length
}

// RunMap is a paragraph's logical text together with the runs it came from
type RunMap struct {
	Text     string
	Segments []Segment
}

// BuildRunMap reconstructs the logical text of a paragraph in run order
func BuildRunMap(para *xml.Paragraph) RunMap {
	var sb strings.Builder
	var segments []Segment
	for _, run := range para.Runs() {
		segments = append(segments, Segment{Run: run, Start: sb.Len(), Length: len(run.Text)})
		sb.WriteString(run.Text)
	}
	return RunMap{Text: sb.String(), Segments: segments}
}

// Covering returns the indices of the segments that overlap [start, end).
// Empty runs never contribute to a span.
func (m RunMap) Covering(start, end int) []int {
	var idx []int
	for i, seg := range m.Segments {
		if seg.Length == 0 {
			continue
		}
		if seg.Start < end && seg.End() > start {
			idx = append(idx, i)
		}
	}
	return idx
}

// SegmentAt returns the index of the segment containing offset, or -1
func (m RunMap) SegmentAt(offset int) int {
	for i, seg := range m.Segments {
		if seg.Length > 0 && offset >= seg.Start && offset < seg.End() {
			return i
		}
	}
	return -1
}
