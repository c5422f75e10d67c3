package pipeline

import (
	"bytes"
	"fmt"
	"image"

	// registered decoders accepted at the validation stage
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds width*height before a full decode.
const DefaultMaxPixels = 80_000_000

// ImageInfo describes a decoded upload.
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// DecodeImage checks that data is a supported image and decodes it.
func DecodeImage(data []byte, maxPixels int) (image.Image, ImageInfo, error) {
	if len(data) == 0 {
		return nil, ImageInfo{}, fmt.Errorf("empty input")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("unrecognized image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ImageInfo{}, fmt.Errorf("image has no pixels (%dx%d)", cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, ImageInfo{}, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageInfo{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return img, ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}, nil
}
