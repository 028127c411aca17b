// Package xml provides the slide document tree used by go-slidestencil.
//
// It models the subset of PresentationML that template processing touches and
// preserves everything else as raw XML so a slide survives a parse/serialize
// round trip.
//
// # Structure Organization
//
//   - types.go: core interfaces (TreeElement, ParagraphContent), RawXMLElement and namespace helpers
//   - slide.go: Slide and ShapeTree, element replacement and id allocation
//   - group.go: Group (p:grpSp), a nested shape tree
//   - shape.go: Shape (p:sp), non-visual properties, geometry (a:xfrm) and shape properties
//   - picture.go: Picture (p:pic)
//   - paragraph.go: TextBody and Paragraph
//   - run.go: Run (a:r)
//   - relationships.go: the .rels part of a slide
//
// # Key Concepts
//
// Run: a contiguous span of text sharing one formatting descriptor. The
// descriptor (a:rPr) is opaque here and carried through untouched.
//
// Paragraph: an ordered sequence of runs. The order is the source of truth for
// the paragraph's logical text.
//
// Shape: a positioned element with an optional text body. A shape knows the tree
// that owns it so it can be replaced structurally.
//
// # XML Namespaces
//
// Slide parts use three main namespaces:
//   - p: PresentationML
//   - a: DrawingML
//   - r: relationships
//
// Elements are written back with these conventional prefixes; the root element
// keeps its original namespace declarations.
package xml
