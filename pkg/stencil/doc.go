// Package stencil binds data to expressions embedded in the text of
// PresentationML slides and hides or replaces shapes whose data is missing.
//
// # Quick Start
//
//	part, err := stencil.ParseSlidePart("ppt/slides/slide1.xml", slideXML, relsXML)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	data := stencil.TemplateData{
//	    "Name":  "World",
//	    "Items": []map[string]any{{"Title": "First", "ImageUrl": "first.png"}},
//	}
//
//	report, err := stencil.New().ProcessSlide(ctx, part, data, nil)
//
// # Expression Syntax
//
// Expressions are written as ${expr} and may be split across differently
// formatted runs of a paragraph:
//
//	${Name}                         plain variable
//	${Customer.Address.City}        property path, case-insensitive
//	${Items[0].Title}               indexed access
//	${ns.Image(Items[0].ImageUrl, width: 200)}
//	${Price * 1.2}                  anything else goes to the expression engine
//	${Total:N2}  ${Date:dd.MM.yyyy} optional format suffix
//
// Function calls are recognized only under the reserved namespace, "ns" by
// default. ns.Image replaces the owning shape with a picture; ns.Chart and
// ns.Table render a fixed "not implemented" marker.
//
// # Visibility
//
// A shape whose text references Items[i] is suppressed when i is at or past
// the number of items available in the active RepeatWindow. Suppression sets
// the hidden flag, shrinks the shape, moves it off the slide and clears its
// text. The original state is kept by the GenerationRun so a later pass with
// different data restores the shape exactly.
//
// # Errors
//
// Processing never fails because of template content. Unresolved references
// render blank or as the original token (Config.UnresolvedPolicy), function
// failures render a diagnostic in place of the call, and a shape that cannot
// be processed is logged, reported in ProcessReport.Errors and skipped.
package stencil
