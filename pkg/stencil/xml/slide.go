package xml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

// ErrElementNotFound is returned when a tree operation cannot locate its target
var ErrElementNotFound = errors.New("element not found in shape tree")

// Slide represents the root p:sld element of a slide part
type Slide struct {
	// Attrs preserves root element attributes (namespaces)
	Attrs []xml.Attr
	// Before holds cSld children that precede the shape tree (e.g. p:bg)
	Before []*RawXMLElement
	Tree   *ShapeTree
	// After holds p:sld children following p:cSld (clrMapOvr, transition, ...)
	After     []*RawXMLElement
	cSldAttrs []xml.Attr
}

// ShapeTree represents p:spTree, or the content of a p:grpSp group
type ShapeTree struct {
	// Header holds p:nvGrpSpPr and p:grpSpPr
	Header   []*RawXMLElement
	Elements []TreeElement

	// parent is the enclosing tree when this tree belongs to a group
	parent *ShapeTree
}

// ParseSlide parses a slide part
func ParseSlide(r io.Reader) (*Slide, error) {
	var slide Slide
	if err := xml.NewDecoder(r).Decode(&slide); err != nil {
		return nil, fmt.Errorf("failed to parse slide: %w", err)
	}
	if slide.Tree == nil {
		slide.Tree = &ShapeTree{}
	}
	return &slide, nil
}

// Marshal serializes the slide including the XML declaration
func (s *Slide) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to marshal slide: %w", err)
	}
	return buf.Bytes(), nil
}

// Shapes returns every p:sp element in document order, including shapes
// nested in groups
func (s *Slide) Shapes() []*Shape {
	if s.Tree == nil {
		return nil
	}
	return s.Tree.Shapes()
}

// UnmarshalXML implements custom XML unmarshaling for p:sld
func (s *Slide) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	s.Attrs = start.Attr
	for {
		token, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "cSld" {
				if err := s.decodeCommonSlideData(d, t); err != nil {
					return err
				}
				continue
			}
			var raw RawXMLElement
			if err := d.DecodeElement(&raw, &t); err != nil {
				return err
			}
			s.After = append(s.After, &raw)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

func (s *Slide) decodeCommonSlideData(d *xml.Decoder, start xml.StartElement) error {
	s.cSldAttrs = start.Attr
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "spTree" {
				var tree ShapeTree
				if err := d.DecodeElement(&tree, &t); err != nil {
					return err
				}
				s.Tree = &tree
				continue
			}
			var raw RawXMLElement
			if err := d.DecodeElement(&raw, &t); err != nil {
				return err
			}
			s.Before = append(s.Before, &raw)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:sld
func (s Slide) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	attrs := qualifyAttrs(s.Attrs)
	if len(attrs) == 0 {
		// a slide built in memory still needs its prefixes declared
		attrs = []xml.Attr{
			{Name: xml.Name{Local: "xmlns:a"}, Value: NamespaceDrawing},
			{Name: xml.Name{Local: "xmlns:r"}, Value: NamespaceRelationship},
			{Name: xml.Name{Local: "xmlns:p"}, Value: NamespacePresentation},
		}
	}
	start = xml.StartElement{Name: pname("p", "sld"), Attr: attrs}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	cSld := xml.StartElement{Name: pname("p", "cSld"), Attr: qualifyAttrs(s.cSldAttrs)}
	if err := e.EncodeToken(cSld); err != nil {
		return err
	}
	for _, b := range s.Before {
		if err := e.Encode(b); err != nil {
			return err
		}
	}
	tree := s.Tree
	if tree == nil {
		tree = &ShapeTree{}
	}
	if err := e.Encode(tree); err != nil {
		return err
	}
	if err := e.EncodeToken(xml.EndElement{Name: cSld.Name}); err != nil {
		return err
	}
	for _, a := range s.After {
		if err := e.Encode(a); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// UnmarshalXML implements custom XML unmarshaling to preserve element order
func (st *ShapeTree) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp":
				var shape Shape
				if err := d.DecodeElement(&shape, &t); err != nil {
					return err
				}
				st.Append(&shape)
			case "pic":
				var pic Picture
				if err := d.DecodeElement(&pic, &t); err != nil {
					return err
				}
				st.Append(&pic)
			case "grpSp":
				var group Group
				if err := d.DecodeElement(&group, &t); err != nil {
					return err
				}
				st.Append(&group)
			case "nvGrpSpPr", "grpSpPr":
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				st.Header = append(st.Header, &raw)
			default:
				// graphic frames and connectors are preserved as-is
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				st.Append(&raw)
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:spTree
func (st ShapeTree) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	header := st.Header
	if len(header) == 0 {
		header = []*RawXMLElement{
			NewRawElement(NamespacePresentation, "nvGrpSpPr", `<p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/>`),
			NewRawElement(NamespacePresentation, "grpSpPr", ""),
		}
	}
	return st.encode(e, "spTree", header)
}

func (st *ShapeTree) encode(e *xml.Encoder, local string, header []*RawXMLElement) error {
	start := xml.StartElement{Name: pname("p", local)}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, h := range header {
		if err := e.Encode(h); err != nil {
			return err
		}
	}
	for _, el := range st.Elements {
		if err := e.Encode(el); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// Append adds an element to the end of the tree and takes ownership of it
func (st *ShapeTree) Append(el TreeElement) {
	st.adopt(el)
	st.Elements = append(st.Elements, el)
}

func (st *ShapeTree) adopt(el TreeElement) {
	switch e := el.(type) {
	case *Shape:
		e.parent = st
	case *Group:
		e.tree().parent = st
	}
}

// Root returns the outermost tree, the slide's p:spTree
func (st *ShapeTree) Root() *ShapeTree {
	root := st
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// Shapes returns the p:sp elements in document order, descending into groups
func (st *ShapeTree) Shapes() []*Shape {
	var shapes []*Shape
	for _, el := range st.Elements {
		switch e := el.(type) {
		case *Shape:
			shapes = append(shapes, e)
		case *Group:
			shapes = append(shapes, e.tree().Shapes()...)
		}
	}
	return shapes
}

// Pictures returns the p:pic elements in document order, descending into groups
func (st *ShapeTree) Pictures() []*Picture {
	var pics []*Picture
	for _, el := range st.Elements {
		switch e := el.(type) {
		case *Picture:
			pics = append(pics, e)
		case *Group:
			pics = append(pics, e.tree().Pictures()...)
		}
	}
	return pics
}

// IndexOf returns the position of el among the tree's direct children, or -1
func (st *ShapeTree) IndexOf(el TreeElement) int {
	for i, e := range st.Elements {
		if e == el {
			return i
		}
	}
	return -1
}

// ReplaceElement swaps old for replacement at the same position, searching
// nested groups when old is not a direct child. The old element is detached.
func (st *ShapeTree) ReplaceElement(old, replacement TreeElement) error {
	if idx := st.IndexOf(old); idx >= 0 {
		st.adopt(replacement)
		st.Elements[idx] = replacement
		if s, ok := old.(*Shape); ok {
			s.parent = nil
		}
		return nil
	}
	for _, el := range st.Elements {
		if g, ok := el.(*Group); ok {
			if err := g.tree().ReplaceElement(old, replacement); err == nil {
				return nil
			}
		}
	}
	return ErrElementNotFound
}

var cNvPrIDRegex = regexp.MustCompile(`cNvPr\b[^>]*?\sid="(\d+)"`)

// MaxElementID returns the largest shape, picture or group id found anywhere
// in the tree, including nested groups and elements kept as raw XML.
func (st *ShapeTree) MaxElementID() int {
	maxID := 0
	scanRaw := func(raw *RawXMLElement) {
		for _, m := range cNvPrIDRegex.FindAllSubmatch(raw.Inner, -1) {
			if id, err := strconv.Atoi(string(m[1])); err == nil && id > maxID {
				maxID = id
			}
		}
	}
	for _, h := range st.Header {
		scanRaw(h)
	}
	for _, el := range st.Elements {
		switch e := el.(type) {
		case *Shape:
			if e.ID() > maxID {
				maxID = e.ID()
			}
		case *Picture:
			if e.ID() > maxID {
				maxID = e.ID()
			}
		case *Group:
			if id := e.tree().MaxElementID(); id > maxID {
				maxID = id
			}
		case *RawXMLElement:
			scanRaw(e)
		}
	}
	return maxID
}
