package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// HEICConverter turns HEIC/HEIF uploads into PNG with an external tool,
// since the image decoders cannot read them.
type HEICConverter struct {
	tool   string
	runner Runner
	logger *slog.Logger
}

// NewHEICConverter returns nil when tool is empty, which leaves HEIC
// uploads to fail validation like any other unreadable input.
func NewHEICConverter(tool string, runner Runner, logger *slog.Logger) *HEICConverter {
	if tool == "" {
		return nil
	}
	if runner == nil {
		runner = execRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HEICConverter{tool: tool, runner: runner, logger: logger}
}

var heifBrands = [][]byte{
	[]byte("heic"), []byte("heix"), []byte("hevc"), []byte("hevx"),
	[]byte("heim"), []byte("heis"), []byte("mif1"), []byte("msf1"),
}

// Handles reports whether data starts with an ISO-BMFF ftyp box carrying a
// HEIF brand.
func (c *HEICConverter) Handles(data []byte) bool {
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	brand := data[8:12]
	for _, b := range heifBrands {
		if bytes.Equal(brand, b) {
			return true
		}
	}
	return false
}

// Convert returns the PNG encoding of a HEIC image.
func (c *HEICConverter) Convert(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "fx-heic-*")
	if err != nil {
		return nil, fmt.Errorf("heic temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "page.heic")
	out := filepath.Join(dir, "page.png")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("heic write: %w", err)
	}

	var args []string
	switch c.tool {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return nil, fmt.Errorf("unsupported HEIC converter %q: use heif-convert, magick or sips", c.tool)
	}
	if _, errb, err := c.runner.Run(ctx, c.tool, c.logger, args...); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", c.tool, err, truncate(string(errb), 512))
	}

	png, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}
	c.logger.Debug("ocr.heic.converted", "tool", c.tool, "in_bytes", len(data), "out_bytes", len(png))
	return png, nil
}
