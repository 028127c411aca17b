package xml

import (
	"encoding/xml"
	"io"
)

// Run represents a run of text sharing one formatting descriptor
type Run struct {
	// Properties is the run's formatting (a:rPr), kept opaque
	Properties *RawXMLElement
	// Text is the content of a:t
	Text string
}

// isParagraphContent implements the ParagraphContent interface
func (r Run) isParagraphContent() {}

// NewRun creates a run with the given text and formatting
func NewRun(text string, props *RawXMLElement) *Run {
	return &Run{Properties: props, Text: text}
}

// GetText returns the text content of a run
func (r *Run) GetText() string {
	if r == nil {
		return ""
	}
	return r.Text
}

// SetText replaces the text content of a run
func (r *Run) SetText(text string) {
	r.Text = text
}

// UnmarshalXML implements custom XML unmarshaling for a:r
func (r *Run) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
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
			case "rPr":
				var props RawXMLElement
				if err := d.DecodeElement(&props, &t); err != nil {
					return err
				}
				r.Properties = &props
			case "t":
				var text string
				if err := d.DecodeElement(&text, &t); err != nil {
					return err
				}
				r.Text += text
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

// MarshalXML implements custom XML marshaling for Run to ensure proper namespacing
func (r Run) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{Name: pname("a", "r")}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	if r.Properties != nil {
		if err := e.Encode(r.Properties); err != nil {
			return err
		}
	}

	if err := e.EncodeElement(r.Text, xml.StartElement{Name: pname("a", "t")}); err != nil {
		return err
	}

	return e.EncodeToken(xml.EndElement{Name: start.Name})
}
