package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Picture represents a p:pic element
type Picture struct {
	NonVisual        NonVisualProperties
	NonVisualPicture *RawXMLElement // p:cNvPicPr as parsed; nil for pictures built in memory
	NonVisualApp     *RawXMLElement
	// LockAspect is written as a:picLocks/@noChangeAspect when NonVisualPicture is nil
	LockAspect bool
	BlipFill   *RawXMLElement
	Properties ShapeProperties
	Extra      []*RawXMLElement
}

func (p *Picture) isTreeElement() {}

// ID returns the picture id
func (p *Picture) ID() int { return p.NonVisual.ID }

// NewPicture builds a picture that shows the embedded image behind relID
func NewPicture(id int, name, descr, relID string, xfrm *Transform, outline *RawXMLElement, lockAspect bool) *Picture {
	blip := fmt.Sprintf(`<a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch>`, relID)
	pic := &Picture{
		NonVisual:  NonVisualProperties{ID: id, Name: name, Descr: descr},
		LockAspect: lockAspect,
		BlipFill:   NewRawElement(NamespacePresentation, "blipFill", blip),
		Properties: ShapeProperties{
			Transform: xfrm,
			Others: []*RawXMLElement{
				NewRawElement(NamespaceDrawing, "prstGeom", `<a:avLst/>`, xml.Attr{Name: xml.Name{Local: "prst"}, Value: "rect"}),
			},
		},
	}
	if outline != nil {
		pic.Properties.Others = append(pic.Properties.Others, outline)
	}
	return pic
}

// RelationshipID returns the r:embed id of the picture's blip
func (p *Picture) RelationshipID() string {
	if p.BlipFill == nil {
		return ""
	}
	d := xml.NewDecoder(bytes.NewReader(p.BlipFill.Inner))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "blip" {
			for _, a := range se.Attr {
				if a.Name.Local == "embed" {
					return a.Value
				}
			}
		}
	}
}

// UnmarshalXML implements custom XML unmarshaling for p:pic
func (p *Picture) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
			case "nvPicPr":
				if err := decodeNonVisual(d, t, &p.NonVisual, &p.NonVisualPicture, &p.NonVisualApp); err != nil {
					return err
				}
				if p.NonVisualPicture != nil {
					p.LockAspect = bytes.Contains(p.NonVisualPicture.Inner, []byte(`noChangeAspect="1"`))
				}
			case "spPr":
				if err := d.DecodeElement(&p.Properties, &t); err != nil {
					return err
				}
			case "blipFill":
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				p.BlipFill = &raw
			default:
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				p.Extra = append(p.Extra, &raw)
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:pic
func (p Picture) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("p", "pic")}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	cNvPicPr := p.NonVisualPicture
	if cNvPicPr == nil {
		inner := ""
		if p.LockAspect {
			inner = `<a:picLocks noChangeAspect="1"/>`
		}
		cNvPicPr = NewRawElement(NamespacePresentation, "cNvPicPr", inner)
	}
	if err := encodeNonVisual(e, "nvPicPr", p.NonVisual, cNvPicPr, p.NonVisualApp, "cNvPicPr"); err != nil {
		return err
	}
	if p.BlipFill != nil {
		if err := e.Encode(p.BlipFill); err != nil {
			return err
		}
	}
	if err := e.Encode(p.Properties); err != nil {
		return err
	}
	for _, x := range p.Extra {
		if err := e.Encode(x); err != nil {
			return err
		}
	}
	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
