package stencil

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

func TestLoadImageFromFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "logo.png", 40, 20)

	asset, err := LoadImage("logo.png", dir)
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, 40, asset.Width)
	assert.Equal(t, 20, asset.Height)
	assert.NotEmpty(t, asset.Data)

	abs, err := LoadImage(filepath.Join(dir, "logo.png"), "/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, asset.Data, abs.Data)
}

func TestLoadImageFromDataURI(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile(writePNG(t, dir, "dot.png", 2, 3))
	require.NoError(t, err)

	asset, err := LoadImage("data:image/png;base64,"+base64.StdEncoding.EncodeToString(data), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, 2, asset.Width)
	assert.Equal(t, 3, asset.Height)

	_, err = LoadImage("data:image/png,notbase64", "")
	assert.Error(t, err)
}

func TestLoadImageErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icon.svg"), []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), 0o644))

	_, err := LoadImage("missing.png", dir)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = LoadImage("  ", dir)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	_, err = LoadImage("notes.txt", dir)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)

	svg, err := LoadImage("icon.svg", dir)
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", svg.ContentType)
	assert.Zero(t, svg.Width)
}

func TestSubstituteKeepsGeometryAndAllocatesID(t *testing.T) {
	dir := t.TempDir()
	asset, err := LoadImage(writePNG(t, dir, "a.png", 40, 20), "")
	require.NoError(t, err)

	placeholder := newTextShape(5, "Logo", []string{"${ns.Image(Logo)}"})
	placeholder.Properties.Others = append(placeholder.Properties.Others,
		xml.NewRawElement(xml.NamespaceDrawing, "ln", `<a:solidFill><a:srgbClr val="00FF00"/></a:solidFill>`))
	other := newTextShape(9, "Other", []string{"x"})
	part := newSlidePart(placeholder, other)

	s := NewImageSubstituter(testConfig(), NewNopLogger())
	pic, err := s.Substitute(part, placeholder, asset, ImageOptions{PreserveAspectRatio: true})
	require.NoError(t, err)

	assert.Equal(t, 10, pic.ID())
	assert.Equal(t, "Logo Picture", pic.NonVisual.Name)
	assert.Equal(t, *placeholder.Geometry().Offset, *pic.Properties.Transform.Offset)
	assert.Equal(t, *placeholder.Geometry().Extent, *pic.Properties.Transform.Extent)
	assert.NotSame(t, placeholder.Geometry(), pic.Properties.Transform)

	require.NotNil(t, pic.Properties.Outline())
	assert.Contains(t, string(pic.Properties.Outline().Inner), "00FF00")

	tree := part.Slide.Tree
	assert.Equal(t, 0, tree.IndexOf(pic))
	assert.Equal(t, -1, tree.IndexOf(placeholder))
	assert.Nil(t, placeholder.Parent())

	require.Len(t, part.Media, 1)
	rel, ok := part.Relationships.Get(pic.RelationshipID())
	require.True(t, ok)
	assert.Equal(t, xml.RelationshipTypeImage, rel.Type)
	assert.Equal(t, part.Media[0].Target, rel.Target)
}

func TestSubstituteSizing(t *testing.T) {
	dir := t.TempDir()
	asset, err := LoadImage(writePNG(t, dir, "wide.png", 40, 20), "")
	require.NoError(t, err)
	s := NewImageSubstituter(testConfig(), NewNopLogger())

	tests := []struct {
		name   string
		opts   ImageOptions
		wantCx int64
		wantCy int64
	}{
		{"keep placeholder extent", ImageOptions{PreserveAspectRatio: true}, 3000, 4000},
		{"width follows image ratio", ImageOptions{Width: 800, PreserveAspectRatio: true}, 800, 400},
		{"height follows image ratio", ImageOptions{Height: 100, PreserveAspectRatio: true}, 200, 100},
		{"width only without ratio", ImageOptions{Width: 800}, 800, 4000},
		{"both given", ImageOptions{Width: 10, Height: 30, PreserveAspectRatio: true}, 10, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := newTextShape(2, "Photo", []string{"x"})
			part := newSlidePart(shape)
			pic, err := s.Substitute(part, shape, asset, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCx, pic.Properties.Transform.Extent.Cx)
			assert.Equal(t, tt.wantCy, pic.Properties.Transform.Extent.Cy)
		})
	}
}

func TestSubstituteDefaults(t *testing.T) {
	asset := &ImageAsset{Data: []byte("gif"), ContentType: "image/gif", Source: "x.gif"}
	cfg := testConfig()
	s := NewImageSubstituter(cfg, NewNopLogger())

	shape := newTextShape(3, "", []string{"x"})
	shape.SetGeometry(nil)
	part := newSlidePart(shape)

	pic, err := s.Substitute(part, shape, asset, ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Picture 4", pic.NonVisual.Name)
	assert.Equal(t, xml.Size{Cx: cfg.DefaultImageWidth, Cy: cfg.DefaultImageHeight}, *pic.Properties.Transform.Extent)
	assert.Equal(t, "ln", pic.Properties.Outline().XMLName.Local)
	assert.Equal(t, "ppt/media/image1.gif", part.Media[0].Name)
}

func TestSubstituteWithoutParentLeavesPartUntouched(t *testing.T) {
	asset := &ImageAsset{Data: []byte("png"), ContentType: "image/png"}
	s := NewImageSubstituter(testConfig(), NewNopLogger())
	part := newSlidePart()
	orphan := newTextShape(1, "Orphan", []string{"${ns.Image(X)}"})

	_, err := s.Substitute(part, orphan, asset, ImageOptions{})
	assert.ErrorIs(t, err, ErrNoParent)
	assert.Empty(t, part.Media)
	assert.Empty(t, part.Relationships.Relationship)

	unsupported := &ImageAsset{Data: []byte("x"), ContentType: "application/pdf"}
	shape := newTextShape(2, "Doc", []string{"x"})
	part = newSlidePart(shape)
	_, err = s.Substitute(part, shape, unsupported, ImageOptions{})
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
	assert.Empty(t, part.Media)
	assert.Equal(t, 0, part.Slide.Tree.IndexOf(shape))
}

func TestImageFunctionDiagnostics(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("plain text"), 0o644))
	cfg := testConfig()
	cfg.ImageBaseDir = dir
	e := NewEvaluator(cfg, nil, NewNopLogger())
	env := NewVariableEnvironment(TemplateData{"Items": []any{map[string]any{"Url": ""}}}, nil)

	tests := []struct {
		text string
		want string
	}{
		{`${ns.Image("missing.png")}`, "[Image not found: missing.png]"},
		{`${ns.Image(missing.png)}`, "[Image not found: missing.png]"},
		{`${ns.Image("notes.txt")}`, "[Unsupported image type: notes.txt]"},
		{`${ns.Image(Nothing)}`, "[Image: no value for Nothing]"},
		{`${ns.Image(Items[0].Url)}`, "[Image: no value for Items[0].Url]"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			shape := newTextShape(2, "Photo", []string{tt.text})
			part := newSlidePart(shape)
			fctx := &FunctionContext{Part: part, Shape: shape, Config: cfg}

			tok := ExtractTokens(tt.text, "ns")[0]
			res := e.EvaluateToken(tok, env, fctx)
			assert.Equal(t, StatusResolved, res.Status)
			assert.Equal(t, tt.want, res.Text)
			assert.Empty(t, part.Media)
		})
	}
}

func TestImageFunctionOutOfRangeAndOrphan(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 4, 4)
	e := NewEvaluator(testConfig(), nil, NewNopLogger())
	env := NewVariableEnvironment(TemplateData{"Items": []any{
		map[string]any{"ImageUrl": path},
		map[string]any{"ImageUrl": path},
	}}, nil)

	tok := ExtractTokens("${ns.Image(Items[9].ImageUrl)}", "ns")[0]
	res := e.EvaluateToken(tok, env, &FunctionContext{})
	assert.Equal(t, StatusOutOfRange, res.Status)
	assert.Empty(t, res.Text)

	// a shape outside any tree cannot be replaced; the token is kept
	tok = ExtractTokens("${ns.Image(Items[0].ImageUrl)}", "ns")[0]
	orphan := newTextShape(1, "Orphan", []string{tok.Raw})
	res = e.EvaluateToken(tok, env, &FunctionContext{Part: newSlidePart(), Shape: orphan})
	assert.Equal(t, StatusKeep, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoParent)
	assert.Equal(t, tok.Raw, res.Text)
}

func TestImageFunctionSizeArguments(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 40, 20)
	e := NewEvaluator(testConfig(), nil, NewNopLogger())
	env := NewVariableEnvironment(TemplateData{"Path": path, "W": 100}, nil)

	text := "${ns.Image(Path, width: W, preserveAspectRatio: true)}"
	shape := newTextShape(2, "Photo", []string{text})
	part := newSlidePart(shape)

	res := e.EvaluateToken(ExtractTokens(text, "ns")[0], env, &FunctionContext{Part: part, Shape: shape})
	require.Equal(t, StatusMutated, res.Status)

	pics := part.Slide.Tree.Pictures()
	require.Len(t, pics, 1)
	assert.Equal(t, int64(100*EMUPerPixel), pics[0].Properties.Transform.Extent.Cx)
	assert.Equal(t, int64(50*EMUPerPixel), pics[0].Properties.Transform.Extent.Cy)
	assert.True(t, pics[0].LockAspect)

	bad := "${ns.Image(Path, width: wide)}"
	shape = newTextShape(3, "Photo", []string{bad})
	part = newSlidePart(shape)
	res = e.EvaluateToken(ExtractTokens(bad, "ns")[0], env, &FunctionContext{Part: part, Shape: shape})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Text, "width")
}
