package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// NamespacePackageRelationships is the namespace of .rels parts
	NamespacePackageRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	// RelationshipTypeImage is the relationship type for embedded images
	RelationshipTypeImage = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

// Relationship represents a relationship in the package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships of one part
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// ParseRelationships parses a .rels part
func ParseRelationships(r io.Reader) (*Relationships, error) {
	var rels Relationships
	if err := xml.NewDecoder(r).Decode(&rels); err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return &rels, nil
}

// Marshal serializes the relationships part
func (r *Relationships) Marshal() ([]byte, error) {
	if r.Namespace == "" {
		r.Namespace = NamespacePackageRelationships
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	return buf.Bytes(), nil
}

// Has reports whether a relationship with the given id exists
func (r *Relationships) Has(id string) bool {
	for _, rel := range r.Relationship {
		if rel.ID == id {
			return true
		}
	}
	return false
}

// Get returns the relationship with the given id
func (r *Relationships) Get(id string) (Relationship, bool) {
	for _, rel := range r.Relationship {
		if rel.ID == id {
			return rel, true
		}
	}
	return Relationship{}, false
}

// NextID returns a fresh "rIdN" identifier. It starts after the largest numeric
// id seen and increments until it collides with neither the existing
// relationships nor any id in taken.
func (r *Relationships) NextID(taken func(string) bool) string {
	maxID := 0
	for _, rel := range r.Relationship {
		if strings.HasPrefix(rel.ID, "rId") {
			if id, err := strconv.Atoi(rel.ID[3:]); err == nil && id > maxID {
				maxID = id
			}
		}
	}
	for n := maxID + 1; ; n++ {
		candidate := fmt.Sprintf("rId%d", n)
		if r.Has(candidate) {
			continue
		}
		if taken != nil && taken(candidate) {
			continue
		}
		return candidate
	}
}

// Add appends a relationship
func (r *Relationships) Add(rel Relationship) {
	r.Relationship = append(r.Relationship, rel)
}

// Remove deletes the relationship with the given id
func (r *Relationships) Remove(id string) bool {
	for i, rel := range r.Relationship {
		if rel.ID == id {
			r.Relationship = append(r.Relationship[:i], r.Relationship[i+1:]...)
			return true
		}
	}
	return false
}
