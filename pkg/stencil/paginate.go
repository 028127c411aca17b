package stencil

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/render"
	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// ShiftShapeIndices rewrites arrayName[i] to arrayName[i+delta] in every
// token of the shape's text, keeping run formatting. Either every paragraph
// is shifted or, on ErrIndexOutOfBounds, none is.
func ShiftShapeIndices(shape *xml.Shape, arrayName string, delta, maxIndex int, namespace string) (bool, error) {
	type pending struct {
		para  *xml.Paragraph
		edits []render.Replacement
	}
	var plan []pending
	for _, para := range shape.Paragraphs() {
		text := render.BuildRunMap(para).Text
		edits, err := indexShifts(text, arrayName, delta, maxIndex, namespace)
		if err != nil {
			return false, err
		}
		if len(edits) > 0 {
			plan = append(plan, pending{para: para, edits: edits})
		}
	}
	for _, p := range plan {
		render.ApplyReplacements(p.para, p.edits)
	}
	return len(plan) > 0, nil
}

// PageName derives the part name of page n (1-based) of a paginated slide.
// Page 1 keeps the template's name.
func PageName(name string, n int) string {
	if n <= 1 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// Clone returns an independent copy of the part under a new name. Media
// parts are not copied.
func (p *SlidePart) Clone(name string) (*SlidePart, error) {
	slideXML, relsXML, err := p.Marshal()
	if err != nil {
		return nil, err
	}
	clone, err := ParseSlidePart(name, bytes.NewReader(slideXML), bytes.NewReader(relsXML))
	if err != nil {
		return nil, err
	}
	clone.MediaInUse = p.MediaInUse
	return clone, nil
}

// PaginateSlide turns a slide whose tokens index arrayName from 0 into one
// slide per page of pageSize items. Every page is a copy of the template with
// the indices shifted by the page offset, then processed like any slide, so
// rows past the end of the data are suppressed on the last page. The template
// part itself becomes page 1. A shift past Config.MaxIndex fails the whole
// call before any page is processed.
func (r *GenerationRun) PaginateSlide(ctx context.Context, template *SlidePart, data TemplateData, arrayName string, pageSize int) ([]*SlidePart, *ProcessReport, error) {
	if template == nil || template.Slide == nil || template.Slide.Tree == nil {
		return nil, nil, NewDocumentError("paginate slide", "", fmt.Errorf("slide has no shape tree"))
	}
	cfg := r.engine.config

	total, _ := NewVariableEnvironment(data, nil).Count(arrayName)
	windows := PageWindows(total, pageSize)

	pages := []*SlidePart{template}
	for i := 2; i <= len(windows); i++ {
		page, err := template.Clone(PageName(template.Name, i))
		if err != nil {
			return nil, nil, err
		}
		pages = append(pages, page)
	}
	// pages embed their images side by side, so names must not collide
	outer := template.MediaInUse
	defer func() { template.MediaInUse = outer }()
	for _, page := range pages {
		page.MediaInUse = func(name string) bool {
			if outer != nil && outer(name) {
				return true
			}
			for _, other := range pages {
				for _, m := range other.Media {
					if m.Name == name {
						return true
					}
				}
			}
			return false
		}
	}

	for i, page := range pages {
		shift := windows[i].Offset
		if shift == 0 {
			continue
		}
		for _, shape := range page.Slide.Shapes() {
			if _, err := ShiftShapeIndices(shape, arrayName, shift, cfg.MaxIndex, cfg.FunctionNamespace); err != nil {
				return nil, nil, NewShapeError(page.Name, shape.ID(), shape.Name(), err)
			}
		}
	}

	report := newProcessReport(r.ID)
	for _, page := range pages {
		pageReport, err := r.ProcessSlide(ctx, page, data, nil)
		if err != nil {
			return pages, report, err
		}
		report.merge(pageReport)
	}
	r.logger.WithField("array", arrayName).Debug("paginated %s into %d pages", template.Name, len(pages))
	return pages, report, nil
}
