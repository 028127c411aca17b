package stencil

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// MediaPart is an embedded binary created while processing a slide
type MediaPart struct {
	// Name is the package path, e.g. "ppt/media/image3.png"
	Name string
	// Target is the path relative to the slide, e.g. "../media/image3.png"
	Target      string
	ContentType string
	RelID       string
	Data        []byte
}

// SlidePart is one slide together with its relationships and the media parts
// added to it during a pass
type SlidePart struct {
	// Name is the package path of the slide, e.g. "ppt/slides/slide1.xml"
	Name          string
	Slide         *xml.Slide
	Relationships *xml.Relationships
	Media         []*MediaPart

	// MediaInUse reports package media names that already exist outside this part
	MediaInUse func(name string) bool
}

// NewSlidePart wraps an already parsed slide. A nil rels gets an empty set.
func NewSlidePart(name string, slide *xml.Slide, rels *xml.Relationships) *SlidePart {
	if rels == nil {
		rels = &xml.Relationships{Namespace: xml.NamespacePackageRelationships}
	}
	return &SlidePart{Name: name, Slide: slide, Relationships: rels}
}

// ParseSlidePart reads a slide and its optional relationships part
func ParseSlidePart(name string, slideXML, relsXML io.Reader) (*SlidePart, error) {
	slide, err := xml.ParseSlide(slideXML)
	if err != nil {
		return nil, NewDocumentError("parse slide", name, err)
	}
	var rels *xml.Relationships
	if relsXML != nil {
		rels, err = xml.ParseRelationships(relsXML)
		if err != nil {
			return nil, NewDocumentError("parse relationships", name, err)
		}
	}
	return NewSlidePart(name, slide, rels), nil
}

// Marshal serializes the slide and its relationships
func (p *SlidePart) Marshal() (slideXML, relsXML []byte, err error) {
	slideXML, err = p.Slide.Marshal()
	if err != nil {
		return nil, nil, NewDocumentError("marshal slide", p.Name, err)
	}
	relsXML, err = p.Relationships.Marshal()
	if err != nil {
		return nil, nil, NewDocumentError("marshal relationships", p.Name, err)
	}
	return slideXML, relsXML, nil
}

// RelationshipsName returns the package path of the slide's .rels part
func (p *SlidePart) RelationshipsName() string {
	dir, file := path.Split(p.Name)
	return dir + "_rels/" + file + ".rels"
}

// relationshipTaken reports ids used by the slide's relationships or by any
// picture already embedded in the slide
func (p *SlidePart) relationshipTaken(id string) bool {
	if p.Relationships.Has(id) {
		return true
	}
	if p.Slide == nil || p.Slide.Tree == nil {
		return false
	}
	for _, pic := range p.Slide.Tree.Pictures() {
		if pic.RelationshipID() == id {
			return true
		}
	}
	return false
}

// AddMediaPart stores data as a new media part and links it from the slide
// with a fresh relationship id
func (p *SlidePart) AddMediaPart(contentType string, data []byte) (relID, target string, err error) {
	ext, ok := mediaExtension(contentType)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	relID = p.Relationships.NextID(p.relationshipTaken)

	var name string
	for n := len(p.Media) + 1; ; n++ {
		name = fmt.Sprintf("ppt/media/image%d%s", n, ext)
		if !p.mediaNameTaken(name) {
			break
		}
	}
	target = "../media/" + path.Base(name)

	p.Relationships.Add(xml.Relationship{
		ID:     relID,
		Type:   xml.RelationshipTypeImage,
		Target: target,
	})
	p.Media = append(p.Media, &MediaPart{
		Name:        name,
		Target:      target,
		ContentType: contentType,
		RelID:       relID,
		Data:        bytes.Clone(data),
	})
	return relID, target, nil
}

// removeMediaPart undoes AddMediaPart
func (p *SlidePart) removeMediaPart(relID string) {
	p.Relationships.Remove(relID)
	for i, m := range p.Media {
		if m.RelID == relID {
			p.Media = append(p.Media[:i], p.Media[i+1:]...)
			return
		}
	}
}

func (p *SlidePart) mediaNameTaken(name string) bool {
	for _, m := range p.Media {
		if m.Name == name {
			return true
		}
	}
	base := path.Base(name)
	for _, rel := range p.Relationships.Relationship {
		if path.Base(rel.Target) == base {
			return true
		}
	}
	return p.MediaInUse != nil && p.MediaInUse(name)
}

// mediaExtension returns the file extension used for a content type
func mediaExtension(contentType string) (string, bool) {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpeg", true
	case "image/gif":
		return ".gif", true
	case "image/bmp":
		return ".bmp", true
	case "image/tiff":
		return ".tiff", true
	case "image/svg+xml":
		return ".svg", true
	default:
		return "", false
	}
}
