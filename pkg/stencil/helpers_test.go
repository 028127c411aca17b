package stencil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// newTextShape builds a shape whose paragraphs hold the given run texts
func newTextShape(id int, name string, paras ...[]string) *xml.Shape {
	body := &xml.TextBody{}
	for _, runs := range paras {
		rs := make([]*xml.Run, len(runs))
		for i, text := range runs {
			rs[i] = xml.NewRun(text, xml.NewRawElement(xml.NamespaceDrawing, "rPr", ""))
		}
		body.Paragraphs = append(body.Paragraphs, xml.NewParagraph(rs...))
	}
	return &xml.Shape{
		NonVisual: xml.NonVisualProperties{ID: id, Name: name},
		Properties: xml.ShapeProperties{
			Transform: &xml.Transform{
				Offset: &xml.Point{X: 100, Y: 200},
				Extent: &xml.Size{Cx: 3000, Cy: 4000},
			},
		},
		TextBody: body,
	}
}

// newSlidePart puts shapes into a fresh slide tree
func newSlidePart(shapes ...*xml.Shape) *SlidePart {
	tree := &xml.ShapeTree{}
	for _, s := range shapes {
		tree.Append(s)
	}
	return NewSlidePart("ppt/slides/slide1.xml", &xml.Slide{Tree: tree}, nil)
}

// shapeRunTexts returns the run texts of a shape per paragraph
func shapeRunTexts(shape *xml.Shape) [][]string {
	return runTexts(shape)
}

// testConfig returns the default configuration with a quiet logger level
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogLevel = "off"
	return cfg
}

func newTestEngine(opts ...Option) *Engine {
	all := append([]Option{WithConfig(testConfig()), WithLogger(NewNopLogger())}, opts...)
	return NewWithOptions(all...)
}

// writePNG writes a w x h PNG into dir and returns its path
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}
