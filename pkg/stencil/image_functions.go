package stencil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// imageFunc implements ns.Image(source, width: N, height: N, preserveAspectRatio: bool).
// Missing data, missing files and unsupported types render a diagnostic and
// leave the shape alone. An out-of-range source asks for suppression.
func imageFunc(fctx *FunctionContext, bound Binding, args []Argument) (FunctionResult, error) {
	src := positional(args)[0]

	var source string
	switch bound.Status {
	case OutOfRange:
		return OutOfRangeResult, nil
	case Unresolved:
		if !looksLikeImageSource(src.Value) {
			return TextResult(fmt.Sprintf("[Image: no value for %s]", src.Value)), nil
		}
		source = src.Value
	default:
		source = bound.Value.String()
		if source == "" {
			return TextResult(fmt.Sprintf("[Image: no value for %s]", src.Value)), nil
		}
	}

	if fctx.Shape == nil || fctx.Part == nil {
		return FunctionResult{Kind: ResultKeep, Err: ErrNoParent}, nil
	}

	cfg := fctx.config()
	asset, err := LoadImage(source, cfg.ImageBaseDir)
	if err != nil {
		return TextResult(imageDiagnostic(source, err)), nil
	}

	opts, err := imageOptions(fctx, args, cfg)
	if err != nil {
		return FunctionResult{}, err
	}

	images := fctx.Images
	if images == nil {
		images = NewImageSubstituter(cfg, fctx.logger())
	}
	if _, err := images.Substitute(fctx.Part, fctx.Shape, asset, opts); err != nil {
		if errors.Is(err, ErrNoParent) {
			return FunctionResult{Kind: ResultKeep, Err: err}, nil
		}
		return TextResult(imageDiagnostic(source, err)), nil
	}
	return FunctionResult{Kind: ResultMutated}, nil
}

func imageDiagnostic(source string, err error) string {
	switch {
	case errors.Is(err, ErrAssetNotFound):
		return fmt.Sprintf("[Image not found: %s]", source)
	case errors.Is(err, ErrUnsupportedContentType):
		return fmt.Sprintf("[Unsupported image type: %s]", source)
	default:
		return fmt.Sprintf("[Image error: %v]", err)
	}
}

// looksLikeImageSource accepts unquoted file names such as logo.png
func looksLikeImageSource(s string) bool {
	if strings.HasPrefix(s, "data:") {
		return true
	}
	switch strings.ToLower(filepath.Ext(s)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".svg":
		return true
	}
	return false
}

// imageOptions reads the keyword arguments. Sizes are given in pixels.
func imageOptions(fctx *FunctionContext, args []Argument, cfg *Config) (ImageOptions, error) {
	opts := ImageOptions{PreserveAspectRatio: cfg.PreserveAspectRatio}

	for _, key := range []string{"width", "height"} {
		arg, ok := keyword(args, key)
		if !ok {
			continue
		}
		px, err := numberArgument(fctx, arg)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", key, err)
		}
		if px < 0 {
			return opts, fmt.Errorf("%s must not be negative", key)
		}
		emu := int64(px * EMUPerPixel)
		if key == "width" {
			opts.Width = emu
		} else {
			opts.Height = emu
		}
	}

	if arg, ok := keyword(args, "preserveAspectRatio"); ok {
		b, err := boolArgument(fctx, arg)
		if err != nil {
			return opts, fmt.Errorf("preserveAspectRatio: %w", err)
		}
		opts.PreserveAspectRatio = b
	}
	return opts, nil
}

func numberArgument(fctx *FunctionContext, arg Argument) (float64, error) {
	b := fctx.ResolveArgument(arg)
	if b.Status != Resolved {
		return 0, fmt.Errorf("cannot resolve %q", arg.Value)
	}
	if n, ok := toFloat(b.Value.Interface()); ok {
		return n, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(b.Value.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", arg.Value)
	}
	return n, nil
}

func boolArgument(fctx *FunctionContext, arg Argument) (bool, error) {
	b := fctx.ResolveArgument(arg)
	if b.Status != Resolved {
		return false, fmt.Errorf("cannot resolve %q", arg.Value)
	}
	if v, ok := b.Value.Interface().(bool); ok {
		return v, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(b.Value.String()))
	if err != nil {
		return false, fmt.Errorf("not a boolean: %q", arg.Value)
	}
	return v, nil
}
