package ocr

import (
	"context"
	"image"
)

// Position is the top-left anchor of a fragment in image pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Fragment is one piece of detected text.
type Fragment struct {
	Label      string   `json:"label"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Position   Position `json:"position"`
}

// RawDetectionResult is the adapter output handed to the model prompt.
type RawDetectionResult struct {
	Elements         []Fragment `json:"elements"`
	VisualContext    string     `json:"visual_context"`
	DetectedLanguage string     `json:"detected_language"`
	Degraded         bool       `json:"degraded,omitempty"`
}

// Detector finds text in a decoded image. Implementations may fail; the
// Adapter absorbs those failures.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Fragment, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Fragment, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Fragment, error) {
	return f(ctx, img)
}

// Config controls the tesseract-backed detector.
type Config struct {
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string
	PSM           int // e.g., 6 is good for uniform block of text
	OEM           int // 1 = LSTM; leave 0 to use default
	TempDir       string
}
