// Package imageio handles decoding uploads, scaling, and encoding results
// in the requested output format.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	// Register webp decoding for uploaded webp files.
	_ "golang.org/x/image/webp"
)

// Prepare decodes the uploaded bytes, applies the optional scale factor,
// and re-encodes as PNG for the removal engine. Scaling uses Lanczos
// resampling.
func Prepare(data []byte, scale float64) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode upload: %w", err)
	}

	if scale != 1.0 {
		bounds := img.Bounds()
		width := int(float64(bounds.Dx()) * scale)
		height := int(float64(bounds.Dy()) * scale)
		if width < 1 || height < 1 {
			return nil, fmt.Errorf("imageio: scale %v collapses image to zero size", scale)
		}
		img = imaging.Resize(img, width, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("imageio: encode for engine: %w", err)
	}

	return buf.Bytes(), nil
}

// Encode re-encodes the engine's output in the requested format. Formats
// without alpha support get the transparency flattened onto white first;
// the quality parameter applies to lossy formats only.
func Encode(data []byte, format string, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imageio: decode result: %w", err)
	}

	var buf bytes.Buffer

	switch format {
	case "png":
		err = imaging.Encode(&buf, img, imaging.PNG)
	case "jpg", "jpeg":
		err = imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, fmt.Errorf("imageio: unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("imageio: encode %s: %w", format, err)
	}

	return buf.Bytes(), nil
}

// ContentType maps an output format to its MIME type.
func ContentType(format string) string {
	switch format {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/" + format
	}
}

// flatten composites the image onto an opaque white canvas, discarding the
// alpha channel.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}
