package stencil

import (
	"maps"
	"strings"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// TemplateData is the name to value mapping bound to a template
type TemplateData map[string]any

// ContextVariable is the name under which the processing context is exposed
// to templates, unless the bound data already uses it.
const ContextVariable = "Context"

// ProcessingContext describes the slide and shape currently being processed
type ProcessingContext struct {
	RunID      string
	SlideIndex int
	SlideName  string
	Shape      *xml.Shape
}

func (c *ProcessingContext) variables() map[string]any {
	vars := map[string]any{
		"RunID":      c.RunID,
		"SlideIndex": c.SlideIndex,
		"SlideName":  c.SlideName,
	}
	if c.Shape != nil {
		vars["ShapeID"] = c.Shape.ID()
		vars["ShapeName"] = c.Shape.Name()
	}
	return vars
}

// ResolveStatus is the outcome of resolving a reference
type ResolveStatus int

const (
	// Resolved means a value was found
	Resolved ResolveStatus = iota
	// Unresolved means a name or property does not exist
	Unresolved
	// OutOfRange means an index is beyond the end of an existing collection
	OutOfRange
)

func (s ResolveStatus) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	case OutOfRange:
		return "out of range"
	default:
		return "unknown"
	}
}

// Resolution is the result of resolving a path
type Resolution struct {
	Value  Value
	Status ResolveStatus
}

// VariableEnvironment is the per-evaluation name to value mapping. It holds
// its own copy of the top-level names and is never mutated by evaluation.
type VariableEnvironment struct {
	vars    mapObject
	context *ProcessingContext
	windows map[string]RepeatWindow
}

// NewVariableEnvironment assembles an environment from bound data and the
// transient processing context
func NewVariableEnvironment(data TemplateData, pctx *ProcessingContext) *VariableEnvironment {
	vars := make(mapObject, len(data)+1)
	maps.Copy(vars, data)
	if pctx != nil {
		if _, taken := vars.Property(ContextVariable); !taken {
			vars[ContextVariable] = pctx.variables()
		}
	}
	return &VariableEnvironment{vars: vars, context: pctx}
}

// WithWindows returns a copy of e in which the named collections are seen
// through their repeat windows
func (e *VariableEnvironment) WithWindows(windows map[string]RepeatWindow) *VariableEnvironment {
	c := *e
	c.windows = windows
	return &c
}

// Context returns the processing context, which may be nil
func (e *VariableEnvironment) Context() *ProcessingContext {
	return e.context
}

// Lookup finds a top-level name, exact match first, then case-insensitively
func (e *VariableEnvironment) Lookup(name string) (Value, bool) {
	v, ok := e.vars.Property(name)
	if !ok {
		return Value{}, false
	}
	return Wrap(v), true
}

// Resolve walks a path such as "Customer.Name" or "Items[2].Title".
// An index past the end of an existing list yields OutOfRange, not an error.
func (e *VariableEnvironment) Resolve(path string) Resolution {
	path = strings.TrimSpace(path)
	if v, ok := e.vars[path]; ok {
		return Resolution{Value: e.windowed(path, Wrap(v)), Status: Resolved}
	}
	segs, ok := parsePath(path)
	if !ok {
		return Resolution{Status: Unresolved}
	}
	cur, ok := e.Lookup(segs[0].name)
	if !ok {
		return Resolution{Status: Unresolved}
	}
	return e.walkPath(cur, segs[0].name, segs[1:])
}

// walkPath resolves the remaining segments against cur, which was reached by prefix
func (e *VariableEnvironment) walkPath(cur Value, prefix string, segs []pathSegment) Resolution {
	for _, seg := range segs {
		if seg.isIndex {
			if cur.Kind() != KindList {
				return Resolution{Status: Unresolved}
			}
			cur = e.windowed(prefix, cur)
			prefix = ""
			next, ok := cur.Index(seg.index)
			if !ok {
				return Resolution{Status: OutOfRange}
			}
			cur = next
			continue
		}
		next, ok := property(e.windowed(prefix, cur), seg.name)
		if !ok {
			return Resolution{Status: Unresolved}
		}
		cur = next
		if prefix != "" {
			prefix += "." + seg.name
		}
	}
	return Resolution{Value: e.windowed(prefix, cur), Status: Resolved}
}

// windowed applies the repeat window registered for path, if any
func (e *VariableEnvironment) windowed(path string, v Value) Value {
	if path == "" || len(e.windows) == 0 || v.Kind() != KindList {
		return v
	}
	if w, ok := e.windows[path]; ok {
		return Wrap(newWindowList(v, w))
	}
	return v
}

// property resolves a name on objects, plus Count and Length on lists
func property(v Value, name string) (Value, bool) {
	switch v.Kind() {
	case KindObject:
		return v.Property(name)
	case KindList:
		if strings.EqualFold(name, "Count") || strings.EqualFold(name, "Length") {
			return Wrap(v.Len()), true
		}
	}
	return Value{}, false
}

// Count returns the number of items of the named collection, and false when
// the name does not resolve to a list
func (e *VariableEnvironment) Count(arrayName string) (int, bool) {
	res := e.Resolve(arrayName)
	if res.Status != Resolved || res.Value.Kind() != KindList {
		return 0, false
	}
	return res.Value.Len(), true
}

