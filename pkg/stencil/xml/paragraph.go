package xml

import (
	"encoding/xml"
	"io"
	"strings"
)

// Paragraph represents a paragraph (a:p) inside a text body
type Paragraph struct {
	// Properties holds paragraph-level formatting (a:pPr)
	Properties *RawXMLElement
	// Content maintains the order of runs, breaks and fields
	Content []ParagraphContent
	// EndProperties holds a:endParaRPr
	EndProperties *RawXMLElement
}

// NewParagraph creates a paragraph from runs
func NewParagraph(runs ...*Run) *Paragraph {
	p := &Paragraph{}
	for _, r := range runs {
		p.Content = append(p.Content, r)
	}
	return p
}

// Runs returns the text runs of the paragraph in document order
func (p *Paragraph) Runs() []*Run {
	var runs []*Run
	for _, c := range p.Content {
		if r, ok := c.(*Run); ok {
			runs = append(runs, r)
		}
	}
	return runs
}

// GetText returns the concatenated text of all runs in a paragraph
func (p *Paragraph) GetText() string {
	var sb strings.Builder
	for _, r := range p.Runs() {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// UnmarshalXML implements custom XML unmarshaling to preserve element order
func (p *Paragraph) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
			case "pPr":
				var props RawXMLElement
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				p.Properties = &props
			case "r":
				var run Run
				if err := d.DecodeElement(&run, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, &run)
			case "endParaRPr":
				var props RawXMLElement
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				p.EndProperties = &props
			default:
				// br, fld and anything else stay in place untouched
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				p.Content = append(p.Content, &raw)
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for Paragraph to ensure proper namespacing
func (p Paragraph) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("a", "p")}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if p.Properties != nil {
		if err := e.Encode(p.Properties); err != nil {
			return err
		}
	}

	for _, content := range p.Content {
		if err := e.Encode(content); err != nil {
			return err
		}
	}

	if p.EndProperties != nil {
		if err := e.Encode(p.EndProperties); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}

// TextBody represents a shape's text body (p:txBody)
type TextBody struct {
	BodyProperties *RawXMLElement
	ListStyle      *RawXMLElement
	Paragraphs     []*Paragraph
}

// GetText returns the text of all paragraphs joined by newlines
func (tb *TextBody) GetText() string {
	if tb == nil {
		return ""
	}
	texts := make([]string, 0, len(tb.Paragraphs))
	for _, p := range tb.Paragraphs {
		texts = append(texts, p.GetText())
	}
	return strings.Join(texts, "\n")
}

// UnmarshalXML implements custom XML unmarshaling for p:txBody
func (tb *TextBody) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
			case "p":
				var para Paragraph
				if err := d.DecodeElement(&para, &t); err != nil {
					return err
				}
				tb.Paragraphs = append(tb.Paragraphs, &para)
			case "bodyPr":
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				tb.BodyProperties = &raw
			case "lstStyle":
				var raw RawXMLElement
				if err := d.DecodeElement(&raw, &t); err != nil {
					return err
				}
				tb.ListStyle = &raw
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// MarshalXML implements custom XML marshaling for p:txBody
func (tb TextBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("p", "txBody")}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	bodyPr := tb.BodyProperties
	if bodyPr == nil {
		bodyPr = NewRawElement(NamespaceDrawing, "bodyPr", "")
	}
	if err := e.Encode(bodyPr); err != nil {
		return err
	}
	if tb.ListStyle != nil {
		if err := e.Encode(tb.ListStyle); err != nil {
			return err
		}
	}

	for _, p := range tb.Paragraphs {
		if err := e.Encode(p); err != nil {
			return err
		}
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
