package stencil

import (
	"strings"
	"sync"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// Visibility is the state of a shape as decided by the VisibilityResolver
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	Visible
	Suppressed
)

func (v Visibility) String() string {
	switch v {
	case Visible:
		return "visible"
	case Suppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

const (
	// OffCanvasOffset moves a suppressed shape outside any slide
	OffCanvasOffset int64 = -20000000
	// suppressedExtent is the size a suppressed shape is shrunk to
	suppressedExtent int64 = 1
)

// ShapeKey identifies a shape within one generation run
type ShapeKey struct {
	Slide string
	ID    int
}

// SuppressionRecord holds what a shape looked like before it was suppressed
type SuppressionRecord struct {
	Key    ShapeKey
	Hidden bool
	// Transform is nil when the shape had no explicit geometry
	Transform *xml.Transform
	// Texts holds run texts per paragraph
	Texts [][]string
}

// text returns the shape text as it was before suppression
func (r *SuppressionRecord) text() string {
	paras := make([]string, len(r.Texts))
	for i, runs := range r.Texts {
		paras[i] = strings.Join(runs, "")
	}
	return strings.Join(paras, "\n")
}

// VisibilityResolver decides whether shapes stay visible and owns the
// suppression records of one generation run. It is safe for concurrent use.
type VisibilityResolver struct {
	mu      sync.Mutex
	records map[ShapeKey]*SuppressionRecord
	states  map[ShapeKey]Visibility
	logger  *Logger
}

// NewVisibilityResolver creates a resolver with an empty record arena
func NewVisibilityResolver(logger *Logger) *VisibilityResolver {
	if logger == nil {
		logger = GetLogger()
	}
	return &VisibilityResolver{
		records: make(map[ShapeKey]*SuppressionRecord),
		states:  make(map[ShapeKey]Visibility),
		logger:  logger,
	}
}

// State returns the last decision for a shape
func (r *VisibilityResolver) State(key ShapeKey) Visibility {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[key]
}

// Record returns the suppression record of a shape, if it is suppressed
func (r *VisibilityResolver) Record(key ShapeKey) (*SuppressionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	return rec, ok
}

// Len returns the number of suppressed shapes
func (r *VisibilityResolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// SourceText returns the text to scan for references: the cached original
// text of a suppressed shape, the current text otherwise
func (r *VisibilityResolver) SourceText(key ShapeKey, shape *xml.Shape) string {
	if rec, ok := r.Record(key); ok {
		return rec.text()
	}
	return shapeText(shape)
}

// Decide compares every reference against the number of items available for
// its array. A negative reference or one at or past the end suppresses;
// otherwise at least one in-range reference makes the shape visible. Without
// references the decision is VisibilityUnknown.
func Decide(refs []ArrayReference, available func(arrayName string) int) Visibility {
	if len(refs) == 0 {
		return VisibilityUnknown
	}
	counts := make(map[string]int, len(refs))
	for _, ref := range refs {
		n, ok := counts[ref.ArrayName]
		if !ok {
			n = available(ref.ArrayName)
			counts[ref.ArrayName] = n
		}
		if ref.Index < 0 || ref.Index >= n {
			return Suppressed
		}
	}
	return Visible
}

// Apply moves a shape to the decided state. It returns true when the shape
// changed: suppressed for the first time, or restored.
func (r *VisibilityResolver) Apply(key ShapeKey, shape *xml.Shape, decision Visibility) bool {
	switch decision {
	case Suppressed:
		return r.Suppress(key, shape)
	case Visible:
		restored := r.Restore(key, shape)
		r.setState(key, Visible)
		return restored
	}
	return false
}

func (r *VisibilityResolver) setState(key ShapeKey, v Visibility) {
	r.mu.Lock()
	r.states[key] = v
	r.mu.Unlock()
}

// Suppress hides a shape every way the format allows: hidden flag, 1x1
// extent, off-canvas offset and empty text. The original state is recorded
// first. A shape that is already suppressed is left alone.
func (r *VisibilityResolver) Suppress(key ShapeKey, shape *xml.Shape) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[key] = Suppressed
	if _, done := r.records[key]; done {
		return false
	}

	rec := &SuppressionRecord{
		Key:       key,
		Hidden:    shape.Hidden(),
		Transform: shape.Geometry().Clone(),
		Texts:     runTexts(shape),
	}
	r.records[key] = rec

	xfrm := shape.Geometry().Clone()
	if xfrm == nil {
		xfrm = &xml.Transform{}
	}
	xfrm.Offset = &xml.Point{X: OffCanvasOffset, Y: OffCanvasOffset}
	xfrm.Extent = &xml.Size{Cx: suppressedExtent, Cy: suppressedExtent}
	shape.SetGeometry(xfrm)
	shape.SetHidden(true)
	for _, p := range shape.Paragraphs() {
		for _, run := range p.Runs() {
			run.SetText("")
		}
	}

	r.logger.WithFields(Fields{
		"slide":      key.Slide,
		"shape_id":   key.ID,
		"shape_name": shape.Name(),
	}).Debug("suppressed shape")
	return true
}

// Restore puts back exactly what Suppress recorded and drops the record.
// It returns false when the shape was not suppressed.
func (r *VisibilityResolver) Restore(key ShapeKey, shape *xml.Shape) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return false
	}
	delete(r.records, key)
	r.states[key] = Visible

	shape.SetGeometry(rec.Transform.Clone())
	shape.SetHidden(rec.Hidden)
	paras := shape.Paragraphs()
	if len(paras) == len(rec.Texts) {
		for i, p := range paras {
			runs := p.Runs()
			if len(runs) != len(rec.Texts[i]) {
				continue
			}
			for j, run := range runs {
				run.SetText(rec.Texts[i][j])
			}
		}
	}

	r.logger.WithFields(Fields{
		"slide":      key.Slide,
		"shape_id":   key.ID,
		"shape_name": shape.Name(),
	}).Debug("restored shape")
	return true
}

// Reset drops all records and states, ending the run
func (r *VisibilityResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[ShapeKey]*SuppressionRecord)
	r.states = make(map[ShapeKey]Visibility)
}

func runTexts(shape *xml.Shape) [][]string {
	paras := shape.Paragraphs()
	texts := make([][]string, len(paras))
	for i, p := range paras {
		runs := p.Runs()
		texts[i] = make([]string, len(runs))
		for j, run := range runs {
			texts[i][j] = run.GetText()
		}
	}
	return texts
}

func shapeText(shape *xml.Shape) string {
	if shape.TextBody == nil {
		return ""
	}
	return shape.TextBody.GetText()
}
