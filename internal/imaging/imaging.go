// Package imaging turns a CMS asset into the inline payload a caption
// provider accepts: optionally downsized, transcoded to a normalized
// format, and base64 data-URI encoded.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"

	// Decode-only support for formats the host may hand us.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pixelforge/alttext/cms"
)

// jpegQuality is the fixed quality factor applied when encoding JPEG.
const jpegQuality = 85

// PreparedImage is the transient payload for a single provider call.
type PreparedImage struct {
	Bytes    []byte
	MimeType string
	DataURI  string
}

// Preparer builds PreparedImages. MaxDimension nil disables resizing.
type Preparer struct {
	store        cms.AssetStore
	maxDimension *int
	log          *zap.SugaredLogger
}

func NewPreparer(store cms.AssetStore, maxDimension *int, log *zap.SugaredLogger) *Preparer {
	return &Preparer{store: store, maxDimension: maxDimension, log: log}
}

// Prepare reads, resizes and transcodes the asset into targetFormat
// ("jpeg", "png", "gif"; "" keeps the source format). Unsupported targets
// fall back to JPEG. Any read or decode failure returns nil after logging;
// callers treat nil as "skip this asset".
func (p *Preparer) Prepare(ctx context.Context, asset *cms.Asset, targetFormat string) *PreparedImage {
	raw, err := p.store.Contents(ctx, asset)
	if err != nil || len(raw) == 0 {
		p.log.Errorw("could not read asset contents", "path", asset.Path, "error", err)
		return nil
	}

	// Without known dimensions there is nothing to size against; hand the
	// original bytes through unchanged.
	if asset.Width == 0 && asset.Height == 0 {
		return encoded(raw, asset.MimeType)
	}

	needsResize := p.maxDimension != nil && max(asset.Width, asset.Height) > *p.maxDimension
	if !needsResize && targetFormat == "" {
		return encoded(raw, asset.MimeType)
	}

	img, srcFormat, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		p.log.Errorw("could not decode image", "path", asset.Path, "error", err)
		return nil
	}
	if needsResize {
		img = p.resize(img)
	}

	format := normalizeFormat(targetFormat)
	if format == "" {
		format = normalizeFormat(srcFormat)
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		p.log.Warnw("no encoder for format, falling back to jpeg", "format", format, "path", asset.Path)
		format = "jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		p.log.Errorw("could not encode image", "path", asset.Path, "format", format, "error", err)
		return nil
	}

	return encoded(buf.Bytes(), mimeForFormat(format))
}

// resize scales img so its larger dimension equals the configured maximum,
// preserving aspect ratio. Never upscales.
func (p *Preparer) resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	limit := *p.maxDimension
	if max(w, h) <= limit {
		return img
	}

	var tw, th int
	if w >= h {
		tw = limit
		th = h * limit / w
	} else {
		th = limit
		tw = w * limit / h
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func encoded(data []byte, mimeType string) *PreparedImage {
	return &PreparedImage{
		Bytes:    data,
		MimeType: mimeType,
		DataURI:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}
}

func normalizeFormat(format string) string {
	format = strings.ToLower(format)
	if format == "jpg" {
		return "jpeg"
	}
	return format
}

func mimeForFormat(format string) string {
	switch normalizeFormat(format) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
