package ocr

import (
	"cmp"
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/joseph-ayodele/form-extractor/internal/common"
)

// Labels and placeholders used in RawDetectionResult.
const (
	DetectedTextLabel       = "Detected Text"
	ErrorLabel              = "Error"
	FailedFragmentText      = "OCR Failed to read image"
	FailedVisualContext     = "OCR Extraction Failed"
	DefaultDetectedLanguage = "en"
)

// Adapter wraps a Detector and always returns a usable RawDetectionResult.
type Adapter struct {
	detector Detector
	language string
	logger   *slog.Logger
}

// NewAdapter builds an adapter; language is the tag reported on success (default "en").
func NewAdapter(detector Detector, language string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if language == "" {
		language = DefaultDetectedLanguage
	}
	return &Adapter{detector: detector, language: language, logger: logger}
}

// Detect runs the detector and orders its fragments top-to-bottom, then
// left-to-right. Detector errors, panics and empty output all produce the
// degraded result instead of an error.
func (a *Adapter) Detect(ctx context.Context, img image.Image) RawDetectionResult {
	start := time.Now()
	rid := common.RequestIDFromContext(ctx)

	frags, err := a.safeDetect(ctx, img)
	if err == nil && len(frags) == 0 {
		err = fmt.Errorf("%w: no text fragments", common.ErrDetectionDegraded)
	}
	if err != nil {
		a.logger.Warn("ocr.detect.degraded",
			"req_id", rid,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Degraded()
	}

	sorted := slices.Clone(frags)
	slices.SortStableFunc(sorted, func(p, q Fragment) int {
		if c := cmp.Compare(p.Position.Y, q.Position.Y); c != 0 {
			return c
		}
		return cmp.Compare(p.Position.X, q.Position.X)
	})

	texts := make([]string, len(sorted))
	for i := range sorted {
		if sorted[i].Label == "" {
			sorted[i].Label = DetectedTextLabel
		}
		sorted[i].Confidence = clamp01(sorted[i].Confidence)
		texts[i] = sorted[i].Text
	}

	a.logger.Info("ocr.detect.ok",
		"req_id", rid,
		"fragments", len(sorted),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return RawDetectionResult{
		Elements:         sorted,
		VisualContext:    strings.Join(texts, "\n"),
		DetectedLanguage: a.language,
	}
}

func (a *Adapter) safeDetect(ctx context.Context, img image.Image) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: detector panic: %v", common.ErrDetectionDegraded, r)
		}
	}()
	if a.detector == nil {
		return nil, fmt.Errorf("%w: no detector configured", common.ErrDetectionDegraded)
	}
	return a.detector.Detect(ctx, img)
}

// Degraded is the result reported when detection could not run.
func Degraded() RawDetectionResult {
	return RawDetectionResult{
		Elements: []Fragment{{
			Label:      ErrorLabel,
			Text:       FailedFragmentText,
			Confidence: 0,
		}},
		VisualContext:    FailedVisualContext,
		DetectedLanguage: DefaultDetectedLanguage,
		Degraded:         true,
	}
}

// MeanConfidence averages fragment confidence; a degraded result scores 0.
func (r RawDetectionResult) MeanConfidence() float64 {
	if r.Degraded || len(r.Elements) == 0 {
		return 0
	}
	var sum float64
	for _, f := range r.Elements {
		sum += f.Confidence
	}
	return sum / float64(len(r.Elements))
}
