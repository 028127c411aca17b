package xml

import (
	"encoding/xml"
	"io"
	"strconv"
)

// NonVisualProperties represents p:cNvPr, the identity of a tree element
type NonVisualProperties struct {
	ID     int    `xml:"id,attr"`
	Name   string `xml:"name,attr"`
	Descr  string `xml:"descr,attr,omitempty"`
	Title  string `xml:"title,attr,omitempty"`
	Hidden bool   `xml:"hidden,attr,omitempty"`
	Inner  []byte `xml:",innerxml"`
}

// MarshalXML implements custom XML marshaling for p:cNvPr
func (n NonVisualProperties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("p", "cNvPr")}
	start.Attr = append(start.Attr,
		xml.Attr{Name: xml.Name{Local: "id"}, Value: strconv.Itoa(n.ID)},
		xml.Attr{Name: xml.Name{Local: "name"}, Value: n.Name},
	)
	if n.Descr != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "descr"}, Value: n.Descr})
	}
	if n.Title != "" {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "title"}, Value: n.Title})
	}
	if n.Hidden {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "hidden"}, Value: "1"})
	}
	inner := struct {
		Inner []byte `xml:",innerxml"`
	}{Inner: n.Inner}
	return e.EncodeElement(inner, start)
}

// Point is a position in EMU
type Point struct {
	X int64 `xml:"x,attr"`
	Y int64 `xml:"y,attr"`
}

// Size is an extent in EMU
type Size struct {
	Cx int64 `xml:"cx,attr"`
	Cy int64 `xml:"cy,attr"`
}

// Transform represents a:xfrm, the geometry of a tree element
type Transform struct {
	Rotation int    `xml:"rot,attr,omitempty"`
	FlipH    bool   `xml:"flipH,attr,omitempty"`
	FlipV    bool   `xml:"flipV,attr,omitempty"`
	Offset   *Point `xml:"off"`
	Extent   *Size  `xml:"ext"`
}

// Clone returns a deep copy of the transform
func (t *Transform) Clone() *Transform {
	if t == nil {
		return nil
	}
	c := &Transform{Rotation: t.Rotation, FlipH: t.FlipH, FlipV: t.FlipV}
	if t.Offset != nil {
		off := *t.Offset
		c.Offset = &off
	}
	if t.Extent != nil {
		ext := *t.Extent
		c.Extent = &ext
	}
	return c
}

// MarshalXML implements custom XML marshaling for a:xfrm
func (t Transform) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("a", "xfrm")}
	if t.Rotation != 0 {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "rot"}, Value: strconv.Itoa(t.Rotation)})
	}
	if t.FlipH {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "flipH"}, Value: "1"})
	}
	if t.FlipV {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "flipV"}, Value: "1"})
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if t.Offset != nil {
		off := xml.StartElement{Name: pname("a", "off"), Attr: []xml.Attr{
			{Name: xml.Name{Local: "x"}, Value: strconv.FormatInt(t.Offset.X, 10)},
			{Name: xml.Name{Local: "y"}, Value: strconv.FormatInt(t.Offset.Y, 10)},
		}}
		if err := e.EncodeElement(struct{}{}, off); err != nil {
			return err
		}
	}
	if t.Extent != nil {
		ext := xml.StartElement{Name: pname("a", "ext"), Attr: []xml.Attr{
			{Name: xml.Name{Local: "cx"}, Value: strconv.FormatInt(t.Extent.Cx, 10)},
			{Name: xml.Name{Local: "cy"}, Value: strconv.FormatInt(t.Extent.Cy, 10)},
		}}
		if err := e.EncodeElement(struct{}{}, ext); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// ShapeProperties represents p:spPr. The transform is always the first child;
// everything after it is kept in order as raw XML.
type ShapeProperties struct {
	Attrs     []xml.Attr
	Transform *Transform
	Others    []*RawXMLElement
}

// Outline returns the a:ln element if present
func (sp *ShapeProperties) Outline() *RawXMLElement {
	if sp == nil {
		return nil
	}
	for _, o := range sp.Others {
		if o.XMLName.Local == "ln" {
			return o
		}
	}
	return nil
}

// UnmarshalXML implements custom XML unmarshaling for p:spPr
func (sp *ShapeProperties) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	sp.Attrs = start.Attr
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
			if t.Name.Local == "xfrm" {
				var xfrm Transform
				if err := d.DecodeElement(&xfrm, &t); err != nil {
					return err
				}
				sp.Transform = &xfrm
				continue
			}
			var raw RawXMLElement
			if err := d.DecodeElement(&raw, &t); err != nil {
				return err
			}
			sp.Others = append(sp.Others, &raw)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:spPr
func (sp ShapeProperties) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("p", "spPr"), Attr: qualifyAttrs(sp.Attrs)}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if sp.Transform != nil {
		if err := e.Encode(sp.Transform); err != nil {
			return err
		}
	}
	for _, o := range sp.Others {
		if err := e.Encode(o); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// Shape represents a p:sp element
type Shape struct {
	NonVisual      NonVisualProperties
	NonVisualShape *RawXMLElement // p:cNvSpPr
	NonVisualApp   *RawXMLElement // p:nvPr
	Properties     ShapeProperties
	Style          *RawXMLElement
	TextBody       *TextBody
	Extra          []*RawXMLElement

	parent *ShapeTree
}

func (s *Shape) isTreeElement() {}

// ID returns the shape id, unique within the slide
func (s *Shape) ID() int { return s.NonVisual.ID }

// Name returns the shape name
func (s *Shape) Name() string { return s.NonVisual.Name }

// Parent returns the tree that owns this shape, or nil if detached
func (s *Shape) Parent() *ShapeTree { return s.parent }

// Hidden reports the explicit hidden flag
func (s *Shape) Hidden() bool { return s.NonVisual.Hidden }

// SetHidden sets the explicit hidden flag
func (s *Shape) SetHidden(hidden bool) { s.NonVisual.Hidden = hidden }

// Geometry returns the shape's transform, or nil when it is inherited from the layout
func (s *Shape) Geometry() *Transform { return s.Properties.Transform }

// SetGeometry replaces the shape's transform
func (s *Shape) SetGeometry(t *Transform) { s.Properties.Transform = t }

// Paragraphs returns the text body paragraphs, or nil if the shape has no text
func (s *Shape) Paragraphs() []*Paragraph {
	if s.TextBody == nil {
		return nil
	}
	return s.TextBody.Paragraphs
}

// UnmarshalXML implements custom XML unmarshaling for p:sp
func (s *Shape) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
			case "nvSpPr":
				if err := decodeNonVisual(d, t, &s.NonVisual, &s.NonVisualShape, &s.NonVisualApp); err != nil {
					return err
				}
			case "spPr":
				if err := d.DecodeElement(&s.Properties, &t); err != nil {
					return err
				}
			case "txBody":
				var tb TextBody
				if err := d.DecodeElement(&tb, &t); err != nil {
					return err
				}
				s.TextBody = &tb
			case "style":
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				s.Style = &raw
			default:
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				s.Extra = append(s.Extra, &raw)
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:sp
func (s Shape) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("p", "sp")}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := encodeNonVisual(e, "nvSpPr", s.NonVisual, s.NonVisualShape, s.NonVisualApp, "cNvSpPr"); err != nil {
		return err
	}
	if err := e.Encode(s.Properties); err != nil {
		return err
	}
	if s.Style != nil {
		if err := e.Encode(s.Style); err != nil {
			return err
		}
	}
	if s.TextBody != nil {
		if err := e.Encode(s.TextBody); err != nil {
			return err
		}
	}
	for _, x := range s.Extra {
		if err := e.Encode(x); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// decodeNonVisual reads nvSpPr/nvPicPr: cNvPr plus the two raw siblings
func decodeNonVisual(d *xml.Decoder, start xml.StartElement, nv *NonVisualProperties, second, app **RawXMLElement) error {
	for {
		token, err := d.Token()
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "cNvPr" {
				if err := d.DecodeElement(nv, &t); err != nil {
					return err
				}
				continue
			}
			var raw RawXMLElement
			if err := d.DecodeElement(&raw, &t); err != nil {
				return err
			}
			if t.Name.Local == "nvPr" {
				*app = &raw
			} else {
				*second = &raw
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

func encodeNonVisual(e *xml.Encoder, wrapper string, nv NonVisualProperties, second, app *RawXMLElement, secondName string) error {
	start := xml.StartElement{Name: pname("p", wrapper)}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(nv); err != nil {
		return err
	}
	if second == nil {
		second = NewRawElement(NamespacePresentation, secondName, "")
	}
	if err := e.Encode(second); err != nil {
		return err
	}
	if app == nil {
		app = NewRawElement(NamespacePresentation, "nvPr", "")
	}
	if err := e.Encode(app); err != nil {
		return err
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
