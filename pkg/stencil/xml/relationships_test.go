package xml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
  <Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image1.png"/>
</Relationships>`

func TestParseRelationships(t *testing.T) {
	rels, err := ParseRelationships(strings.NewReader(testRelsXML))
	require.NoError(t, err)

	require.Len(t, rels.Relationship, 2)
	assert.True(t, rels.Has("rId3"))
	assert.False(t, rels.Has("rId2"))

	rel, ok := rels.Get("rId3")
	require.True(t, ok)
	assert.Equal(t, RelationshipTypeImage, rel.Type)
	assert.Equal(t, "../media/image1.png", rel.Target)
}

func TestNextID(t *testing.T) {
	rels, err := ParseRelationships(strings.NewReader(testRelsXML))
	require.NoError(t, err)

	assert.Equal(t, "rId4", rels.NextID(nil))

	taken := map[string]bool{"rId4": true, "rId5": true}
	assert.Equal(t, "rId6", rels.NextID(func(id string) bool { return taken[id] }))

	empty := &Relationships{}
	assert.Equal(t, "rId1", empty.NextID(nil))
}

func TestRelationshipsAddRemoveRoundTrip(t *testing.T) {
	rels, err := ParseRelationships(strings.NewReader(testRelsXML))
	require.NoError(t, err)

	rels.Add(Relationship{ID: "rId4", Type: RelationshipTypeImage, Target: "../media/image2.png"})
	assert.True(t, rels.Remove("rId1"))
	assert.False(t, rels.Remove("rId1"))

	out, err := rels.Marshal()
	require.NoError(t, err)

	again, err := ParseRelationships(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, again.Relationship, 2)
	assert.True(t, again.Has("rId4"))
	assert.False(t, again.Has("rId1"))
}
