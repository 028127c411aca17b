package stencil

// RepeatWindow is the slice of a collection visible to one repeat or page.
// Indices in the template are relative to Offset.
type RepeatWindow struct {
	Offset int
	// PageSize limits the window; 0 means all remaining items
	PageSize int
}

// Available returns how many of total items fall inside the window
func (w RepeatWindow) Available(total int) int {
	n := total - max(w.Offset, 0)
	if n < 0 {
		return 0
	}
	if w.PageSize > 0 && n > w.PageSize {
		return w.PageSize
	}
	return n
}

// windowList presents a window of a list as a list of its own
type windowList struct {
	base   Value
	offset int
	size   int
}

func newWindowList(base Value, w RepeatWindow) windowList {
	return windowList{base: base, offset: max(w.Offset, 0), size: w.Available(base.Len())}
}

func (l windowList) Len() int { return l.size }

func (l windowList) Index(i int) (any, bool) {
	if i < 0 || i >= l.size {
		return nil, false
	}
	v, ok := l.base.Index(l.offset + i)
	if !ok {
		return nil, false
	}
	return v.Interface(), true
}

func (l windowList) items() []any {
	out := make([]any, 0, l.size)
	for i := 0; i < l.size; i++ {
		v, _ := l.Index(i)
		out = append(out, v)
	}
	return out
}

// PageWindows splits total items into consecutive windows of pageSize
func PageWindows(total, pageSize int) []RepeatWindow {
	if pageSize <= 0 || total <= pageSize {
		return []RepeatWindow{{Offset: 0, PageSize: pageSize}}
	}
	var windows []RepeatWindow
	for off := 0; off < total; off += pageSize {
		windows = append(windows, RepeatWindow{Offset: off, PageSize: pageSize})
	}
	return windows
}
