package stencil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/benjaminschreck/go-slidestencil/pkg/stencil/xml"
)

// ImageAsset is a loaded image ready to be embedded
type ImageAsset struct {
	Data        []byte
	ContentType string
	Source      string
	// Width and Height are pixel dimensions, 0 when they cannot be decoded (svg)
	Width  int
	Height int
}

// LoadImage reads an image from a data URI or a local file. Relative paths
// are resolved against baseDir.
func LoadImage(source, baseDir string) (*ImageAsset, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty image source", ErrAssetNotFound)
	}

	var (
		data        []byte
		contentType string
		err         error
	)
	if strings.HasPrefix(source, "data:") {
		contentType, data, err = parseDataURI(source)
		if err != nil {
			return nil, err
		}
	} else {
		data, err = readImageFile(resolveImagePath(source, baseDir))
		if err != nil {
			return nil, err
		}
		contentType = detectImageType(source, data)
	}

	if _, ok := mediaExtension(contentType); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	asset := &ImageAsset{Data: data, ContentType: contentType, Source: source}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}
	return asset, nil
}

func resolveImagePath(source, baseDir string) string {
	if baseDir == "" || filepath.IsAbs(source) {
		return source
	}
	return filepath.Join(baseDir, source)
}

// readImageFile buffers the whole file; the handle is released on every path
func readImageFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, name)
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// detectImageType sniffs the content and falls back to the file extension for
// formats the sniffer does not know
func detectImageType(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") && sniffed != "image/svg+xml" {
		return sniffed
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".svg":
		if bytes.Contains(data, []byte("<svg")) {
			return "image/svg+xml"
		}
	case ".tif", ".tiff":
		if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
			return "image/tiff"
		}
	}
	return sniffed
}

// parseDataURI parses a data URI and returns the MIME type and decoded data
func parseDataURI(dataURI string) (string, []byte, error) {
	// Data URI format: data:[<mediatype>][;base64],<data>
	if !strings.HasPrefix(dataURI, "data:") {
		return "", nil, fmt.Errorf("invalid data URI format")
	}

	metadata, payload, ok := strings.Cut(dataURI[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("invalid data URI format")
	}
	if payload == "" {
		return "", nil, fmt.Errorf("no image data")
	}
	if !strings.HasSuffix(metadata, ";base64") {
		return "", nil, fmt.Errorf("missing base64 marker")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return strings.TrimSuffix(metadata, ";base64"), data, nil
}

// ImageOptions control the size of a substituted picture. Width and Height
// are in EMU; 0 keeps the placeholder's extent for that axis.
type ImageOptions struct {
	Width               int64
	Height              int64
	PreserveAspectRatio bool
}

// ImageSubstituter replaces placeholder shapes with embedded pictures
type ImageSubstituter struct {
	config *Config
	logger *Logger
}

// NewImageSubstituter creates a substituter using config for fallback sizes
func NewImageSubstituter(config *Config, logger *Logger) *ImageSubstituter {
	if config == nil {
		config = GetGlobalConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &ImageSubstituter{config: config, logger: logger}
}

// Substitute swaps shape for a picture showing asset. All checks run before
// anything is written, so on error the slide is left as it was.
func (s *ImageSubstituter) Substitute(part *SlidePart, shape *xml.Shape, asset *ImageAsset, opts ImageOptions) (*xml.Picture, error) {
	tree := shape.Parent()
	if tree == nil {
		return nil, fmt.Errorf("%w: shape %d (%s)", ErrNoParent, shape.ID(), shape.Name())
	}
	if _, ok := mediaExtension(asset.ContentType); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, asset.ContentType)
	}

	xfrm := s.pictureTransform(shape.Geometry(), asset, opts)
	id := tree.Root().MaxElementID() + 1

	outline := shape.Properties.Outline().Clone()
	if outline == nil {
		outline = defaultOutline()
	}

	relID, _, err := part.AddMediaPart(asset.ContentType, asset.Data)
	if err != nil {
		return nil, err
	}

	pic := xml.NewPicture(id, pictureName(shape, id), shape.NonVisual.Descr, relID, xfrm, outline, opts.PreserveAspectRatio)
	if err := tree.ReplaceElement(shape, pic); err != nil {
		part.removeMediaPart(relID)
		return nil, fmt.Errorf("%w: %v", ErrNoParent, err)
	}

	s.logger.WithFields(Fields{
		"shape_id":   shape.ID(),
		"picture_id": id,
		"rel_id":     relID,
	}).Debug("substituted image %s", asset.Source)
	return pic, nil
}

// pictureTransform carries the placeholder geometry over. Explicit sizes
// replace an axis; with only one given and the aspect ratio preserved, the
// other follows the image proportions.
func (s *ImageSubstituter) pictureTransform(orig *xml.Transform, asset *ImageAsset, opts ImageOptions) *xml.Transform {
	xfrm := orig.Clone()
	if xfrm == nil {
		xfrm = &xml.Transform{}
	}
	if xfrm.Offset == nil {
		xfrm.Offset = &xml.Point{}
	}
	if xfrm.Extent == nil {
		xfrm.Extent = &xml.Size{Cx: s.config.DefaultImageWidth, Cy: s.config.DefaultImageHeight}
	}

	width, height := opts.Width, opts.Height
	if opts.PreserveAspectRatio && asset.Width > 0 && asset.Height > 0 {
		ratio := float64(asset.Height) / float64(asset.Width)
		switch {
		case width > 0 && height == 0:
			height = int64(float64(width) * ratio)
		case height > 0 && width == 0:
			width = int64(float64(height) / ratio)
		}
	}
	if width > 0 {
		xfrm.Extent.Cx = width
	}
	if height > 0 {
		xfrm.Extent.Cy = height
	}
	return xfrm
}

func pictureName(shape *xml.Shape, id int) string {
	if shape.Name() == "" {
		return fmt.Sprintf("Picture %d", id)
	}
	return shape.Name() + " Picture"
}

func defaultOutline() *xml.RawXMLElement {
	return xml.NewRawElement(xml.NamespaceDrawing, "ln", `<a:noFill/>`)
}
