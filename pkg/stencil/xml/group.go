package xml

import (
	"encoding/xml"
	"strconv"
)

// Group represents a p:grpSp element. Its children live in a nested tree
// whose parent is the enclosing tree, so grouped shapes can be replaced in
// place like top-level ones.
type Group struct {
	Tree *ShapeTree
}

func (g *Group) isTreeElement() {}

func (g *Group) tree() *ShapeTree {
	if g.Tree == nil {
		g.Tree = &ShapeTree{}
	}
	return g.Tree
}

// ID returns the group's own id from p:nvGrpSpPr, or 0 when absent
func (g *Group) ID() int {
	for _, h := range g.tree().Header {
		if h.XMLName.Local != "nvGrpSpPr" {
			continue
		}
		if m := cNvPrIDRegex.FindSubmatch(h.Inner); m != nil {
			id, _ := strconv.Atoi(string(m[1]))
			return id
		}
	}
	return 0
}

// UnmarshalXML implements custom XML unmarshaling for p:grpSp
func (g *Group) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return g.tree().UnmarshalXML(d, start)
}

// MarshalXML implements custom XML marshaling for p:grpSp
func (g Group) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return g.tree().encode(e, "grpSp", g.tree().Header)
}
