package xml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSlideXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld>
    <p:spTree>
      <p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
      <p:grpSpPr/>
      <p:sp>
        <p:nvSpPr><p:cNvPr id="2" name="Title 1"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr>
        <p:spPr>
          <a:xfrm><a:off x="838200" y="365125"/><a:ext cx="10515600" cy="1325563"/></a:xfrm>
          <a:prstGeom prst="rect"><a:avLst/></a:prstGeom>
          <a:ln w="12700"><a:solidFill><a:srgbClr val="FF0000"/></a:solidFill></a:ln>
        </p:spPr>
        <p:txBody>
          <a:bodyPr/>
          <a:lstStyle/>
          <a:p>
            <a:r><a:rPr lang="en-US" b="1"/><a:t>Hello ${Na</a:t></a:r>
            <a:r><a:rPr lang="en-US"/><a:t>me}!</a:t></a:r>
          </a:p>
          <a:p><a:r><a:t>Second</a:t></a:r><a:br/><a:r><a:t>line</a:t></a:r></a:p>
        </p:txBody>
      </p:sp>
      <p:grpSp>
        <p:nvGrpSpPr><p:cNvPr id="7" name="Group 6"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
        <p:grpSpPr/>
        <p:sp><p:nvSpPr><p:cNvPr id="9" name="Nested"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr/></p:sp>
      </p:grpSp>
      <p:pic>
        <p:nvPicPr><p:cNvPr id="4" name="Picture 3"/><p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>
        <p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>
        <p:spPr><a:xfrm><a:off x="1" y="2"/><a:ext cx="3" cy="4"/></a:xfrm></p:spPr>
      </p:pic>
    </p:spTree>
  </p:cSld>
  <p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sld>`

func parseTestSlide(t *testing.T) *Slide {
	t.Helper()
	slide, err := ParseSlide(strings.NewReader(testSlideXML))
	require.NoError(t, err)
	return slide
}

func TestParseSlide(t *testing.T) {
	slide := parseTestSlide(t)

	shapes := slide.Shapes()
	require.Len(t, shapes, 2)
	sp := shapes[0]
	assert.Equal(t, 2, sp.ID())
	assert.Equal(t, "Title 1", sp.Name())
	assert.Same(t, slide.Tree, sp.Parent())
	assert.False(t, sp.Hidden())

	geom := sp.Geometry()
	require.NotNil(t, geom)
	assert.Equal(t, Point{X: 838200, Y: 365125}, *geom.Offset)
	assert.Equal(t, Size{Cx: 10515600, Cy: 1325563}, *geom.Extent)
	require.NotNil(t, sp.Properties.Outline())

	paras := sp.Paragraphs()
	require.Len(t, paras, 2)
	assert.Equal(t, "Hello ${Name}!", paras[0].GetText())
	assert.Len(t, paras[0].Runs(), 2)
	// the line break stays in place between the runs
	assert.Len(t, paras[1].Content, 3)
	assert.Equal(t, "Secondline", paras[1].GetText())

	pics := slide.Tree.Pictures()
	require.Len(t, pics, 1)
	assert.Equal(t, "rId2", pics[0].RelationshipID())
	assert.Equal(t, 4, pics[0].ID())
}

func TestSlideRoundTrip(t *testing.T) {
	slide := parseTestSlide(t)

	out, err := slide.Marshal()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("<?xml")))

	again, err := ParseSlide(bytes.NewReader(out))
	require.NoError(t, err)

	require.Len(t, again.Shapes(), 2)
	assert.Equal(t, "Nested", again.Shapes()[1].Name())
	sp := again.Shapes()[0]
	assert.Equal(t, "Title 1", sp.Name())
	assert.Equal(t, "Hello ${Name}!", sp.Paragraphs()[0].GetText())
	assert.Equal(t, *parseTestSlide(t).Shapes()[0].Geometry(), *sp.Geometry())
	assert.Len(t, again.Tree.Elements, 3)
	assert.Len(t, again.After, 1)
	assert.Equal(t, "rId2", again.Tree.Pictures()[0].RelationshipID())
	assert.Equal(t, 9, again.Tree.MaxElementID())

	// run formatting is carried through untouched
	props := sp.Paragraphs()[0].Runs()[0].Properties
	require.NotNil(t, props)
	b, ok := props.Attr("b")
	assert.True(t, ok)
	assert.Equal(t, "1", b)
}

func TestHiddenFlagRoundTrip(t *testing.T) {
	slide := parseTestSlide(t)
	slide.Shapes()[0].SetHidden(true)

	out, err := slide.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `hidden="1"`)

	again, err := ParseSlide(bytes.NewReader(out))
	require.NoError(t, err)
	assert.True(t, again.Shapes()[0].Hidden())
}

func TestMaxElementID(t *testing.T) {
	tests := []struct {
		name  string
		build func() *ShapeTree
		want  int
	}{
		{
			name:  "empty tree",
			build: func() *ShapeTree { return &ShapeTree{} },
			want:  0,
		},
		{
			name: "shapes and pictures",
			build: func() *ShapeTree {
				st := &ShapeTree{}
				st.Append(&Shape{NonVisual: NonVisualProperties{ID: 3}})
				st.Append(NewPicture(12, "pic", "", "rId1", nil, nil, true))
				st.Append(&Shape{NonVisual: NonVisualProperties{ID: 5}})
				return st
			},
			want: 12,
		},
		{
			name: "ids inside raw elements",
			build: func() *ShapeTree {
				st := &ShapeTree{}
				st.Append(&Shape{NonVisual: NonVisualProperties{ID: 3}})
				st.Append(NewRawElement(NamespacePresentation, "grpSp", `<p:nvGrpSpPr><p:cNvPr name="g" id="40"/></p:nvGrpSpPr>`))
				return st
			},
			want: 40,
		},
	}

	tests = append(tests, struct {
		name  string
		build func() *ShapeTree
		want  int
	}{
		name:  "nested groups",
		build: func() *ShapeTree { return parseTestSlide(t).Tree },
		want:  9,
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.build().MaxElementID())
		})
	}
}

func TestReplaceElement(t *testing.T) {
	st := &ShapeTree{}
	first := &Shape{NonVisual: NonVisualProperties{ID: 2}}
	second := &Shape{NonVisual: NonVisualProperties{ID: 3}}
	st.Append(first)
	st.Append(second)

	pic := NewPicture(4, "Picture 4", "", "rId9", nil, nil, false)
	require.NoError(t, st.ReplaceElement(first, pic))

	assert.Equal(t, 0, st.IndexOf(pic))
	assert.Equal(t, -1, st.IndexOf(first))
	assert.Nil(t, first.Parent())
	assert.Same(t, st, second.Parent())

	err := st.ReplaceElement(first, pic)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestGroupTree(t *testing.T) {
	slide := parseTestSlide(t)

	group, ok := slide.Tree.Elements[1].(*Group)
	require.True(t, ok)
	assert.Equal(t, 7, group.ID())

	nested := slide.Shapes()[1]
	assert.Equal(t, 9, nested.ID())
	assert.Same(t, group.Tree, nested.Parent())
	assert.Same(t, slide.Tree, nested.Parent().Root())
	assert.Same(t, slide.Tree, slide.Tree.Root())

	// replacement from the slide tree reaches into the group
	pic := NewPicture(10, "Picture 10", "", "rId5", nil, nil, false)
	require.NoError(t, slide.Tree.ReplaceElement(nested, pic))
	assert.Nil(t, nested.Parent())
	assert.Equal(t, 0, group.Tree.IndexOf(pic))
	assert.Equal(t, 10, slide.Tree.MaxElementID())
	assert.Len(t, slide.Tree.Pictures(), 2)

	out, err := slide.Marshal()
	require.NoError(t, err)
	again, err := ParseSlide(bytes.NewReader(out))
	require.NoError(t, err)

	regrouped, ok := again.Tree.Elements[1].(*Group)
	require.True(t, ok)
	require.Len(t, regrouped.Tree.Pictures(), 1)
	assert.Equal(t, "rId5", regrouped.Tree.Pictures()[0].RelationshipID())
	assert.Len(t, again.Shapes(), 1)
}

func TestNewPictureMarshal(t *testing.T) {
	xfrm := &Transform{Offset: &Point{X: 10, Y: 20}, Extent: &Size{Cx: 30, Cy: 40}}
	outline := NewRawElement(NamespaceDrawing, "ln", `<a:noFill/>`)
	st := &ShapeTree{}
	st.Append(NewPicture(5, "Logo Picture", "alt", "rId3", xfrm, outline, true))

	slide := &Slide{Tree: st}
	out, err := slide.Marshal()
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `r:embed="rId3"`)
	assert.Contains(t, s, `noChangeAspect="1"`)
	assert.Contains(t, s, `<a:off x="10" y="20">`)
	assert.Contains(t, s, `<a:ln>`)
}

func TestInMemorySlideDeclaresNamespaces(t *testing.T) {
	st := &ShapeTree{}
	st.Append(&Shape{NonVisual: NonVisualProperties{ID: 2, Name: "Body"}})
	out, err := (&Slide{Tree: st}).Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), `xmlns:p="`+NamespacePresentation+`"`)

	again, err := ParseSlide(bytes.NewReader(out))
	require.NoError(t, err)
	require.Len(t, again.Shapes(), 1)
	assert.Equal(t, "Body", again.Shapes()[0].Name())
}
