package xml

import (
	"encoding/xml"
)

// Namespace URIs used by slide parts.
const (
	NamespacePresentation = "http://schemas.openxmlformats.org/presentationml/2006/main"
	NamespaceDrawing      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	NamespaceRelationship = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NamespaceXML          = "http://www.w3.org/XML/1998/namespace"
)

// TreeElement represents any element that can appear in a shape tree
type TreeElement interface {
	isTreeElement()
}

// ParagraphContent represents any content that can appear in a paragraph
type ParagraphContent interface {
	isParagraphContent()
}

// RawXMLElement represents a raw XML element that we preserve but don't parse.
// Inner holds the element's content exactly as it appeared in the source.
type RawXMLElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   []byte     `xml:",innerxml"`
}

func (r RawXMLElement) isTreeElement()      {}
func (r RawXMLElement) isParagraphContent() {}

// Clone returns a deep copy of the element
func (r *RawXMLElement) Clone() *RawXMLElement {
	if r == nil {
		return nil
	}
	c := &RawXMLElement{XMLName: r.XMLName}
	c.Attrs = append([]xml.Attr(nil), r.Attrs...)
	c.Inner = append([]byte(nil), r.Inner...)
	return c
}

// Attr returns the value of the attribute with the given local name
func (r *RawXMLElement) Attr(local string) (string, bool) {
	for _, a := range r.Attrs {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// MarshalXML writes the element with conventional namespace prefixes and its
// inner content verbatim.
func (r RawXMLElement) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = qualify(r.XMLName)
	start.Attr = qualifyAttrs(r.Attrs)
	inner := struct {
		Inner []byte `xml:",innerxml"`
	}{Inner: r.Inner}
	return e.EncodeElement(inner, start)
}

// NewRawElement builds a raw element in the given namespace from literal inner XML
func NewRawElement(space, local, inner string, attrs ...xml.Attr) *RawXMLElement {
	return &RawXMLElement{
		XMLName: xml.Name{Space: space, Local: local},
		Attrs:   attrs,
		Inner:   []byte(inner),
	}
}

// namespaceToPrefix converts a namespace URI to its conventional prefix
func namespaceToPrefix(uri string) string {
	prefixMap := map[string]string{
		NamespacePresentation: "p",
		NamespaceDrawing:      "a",
		NamespaceRelationship: "r",
		NamespaceXML:          "xml",
		"http://schemas.openxmlformats.org/drawingml/2006/chart":               "c",
		"http://schemas.openxmlformats.org/drawingml/2006/diagram":             "dgm",
		"http://schemas.openxmlformats.org/drawingml/2006/picture":             "pic",
		"http://schemas.openxmlformats.org/markup-compatibility/2006":          "mc",
		"http://schemas.microsoft.com/office/drawing/2010/main":                "a14",
		"http://schemas.microsoft.com/office/powerpoint/2010/main":             "p14",
		"http://schemas.microsoft.com/office/powerpoint/2012/main":             "p15",
		"http://schemas.microsoft.com/office/drawing/2014/main":                "a16",
		"http://schemas.microsoft.com/office/powerpoint/2015/main":             "p159",
		"http://schemas.microsoft.com/office/drawing/2017/decorative":          "adec",
		"http://schemas.microsoft.com/office/drawing/2012/main":                "a15",
		"http://schemas.microsoft.com/office/powerpoint/2018/8/main":           "p1710",
		"http://schemas.microsoft.com/office/drawing/2016/SVG/main":            "asvg",
		"http://schemas.openxmlformats.org/officeDocument/2006/math":           "m",
		"urn:schemas-microsoft-com:vml":                                        "v",
		"urn:schemas-microsoft-com:office:office":                              "o",
		"http://schemas.openxmlformats.org/package/2006/relationships":         "",
		"http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes": "vt",
	}

	if prefix, ok := prefixMap[uri]; ok {
		return prefix
	}
	return ""
}

// qualify turns a decoded name into the prefixed local name the encoder writes
func qualify(name xml.Name) xml.Name {
	if name.Space == "" {
		return xml.Name{Local: name.Local}
	}
	if name.Space == "xmlns" {
		return xml.Name{Local: "xmlns:" + name.Local}
	}
	if prefix := namespaceToPrefix(name.Space); prefix != "" {
		return xml.Name{Local: prefix + ":" + name.Local}
	}
	return xml.Name{Local: name.Local}
}

func qualifyAttrs(attrs []xml.Attr) []xml.Attr {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, xml.Attr{Name: qualify(a.Name), Value: a.Value})
	}
	return out
}

// pname builds a prefixed element name
func pname(prefix, local string) xml.Name {
	return xml.Name{Local: prefix + ":" + local}
}
