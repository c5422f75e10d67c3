package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/llm"
	"github.com/joseph-ayodele/form-extractor/internal/ocr"
	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

// TextDetector returns a detection result for a decoded image and never fails.
// *ocr.Adapter implements it.
type TextDetector interface {
	Detect(ctx context.Context, img image.Image) ocr.RawDetectionResult
}

// ImageConverter rewrites inputs the image decoders cannot read.
// *ocr.HEICConverter implements it.
type ImageConverter interface {
	Handles(data []byte) bool
	Convert(ctx context.Context, data []byte) ([]byte, error)
}

// Pipeline runs validation, text detection, model structuring and schema
// coercion in order. Collaborators are shared read-only across calls, so one
// Pipeline serves concurrent Process calls.
type Pipeline struct {
	detector  TextDetector
	generator llm.Generator
	recoverer *llm.Recoverer
	converter ImageConverter
	observers []Observer
	maxPixels int
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithRecoverer(r *llm.Recoverer) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recoverer = r
		}
	}
}

// WithImageConverter runs c before decoding inputs it handles. A nil
// *ocr.HEICConverter is ignored.
func WithImageConverter(c ImageConverter) Option {
	return func(p *Pipeline) {
		if hc, ok := c.(*ocr.HEICConverter); ok && hc == nil {
			return
		}
		if c != nil {
			p.converter = c
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observers = append(p.observers, o)
		}
	}
}

func WithMaxPixels(n int) Option {
	return func(p *Pipeline) {
		p.maxPixels = n
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func New(detector TextDetector, generator llm.Generator, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		detector:  detector,
		generator: generator,
		recoverer: llm.NewRecoverer(),
		maxPixels: DefaultMaxPixels,
		now:       time.Now,
		logger:    logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// run carries the per-call state of one Process invocation.
type run struct {
	p     *Pipeline
	ctx   context.Context
	steps []Step
}

func (r *run) begin(stage string) time.Time {
	r.p.notify(func(o Observer) { o.StageStarted(r.ctx, stage) })
	return r.p.now()
}

func (r *run) end(stage string, started time.Time, status constants.StepStatus, payload any) {
	r.steps = append(r.steps, Step{StepName: stage, Status: status, Payload: payload})
	elapsed := r.p.now().Sub(started)
	r.p.notify(func(o Observer) { o.StageFinished(r.ctx, stage, status, elapsed) })
}

func (p *Pipeline) notify(fn func(Observer)) {
	for _, o := range p.observers {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					p.logger.Warn("pipeline.observer.panic", "panic", fmt.Sprint(rec))
				}
			}()
			fn(o)
		}()
	}
}

// Process runs the whole extraction for one image. It always returns a
// Result; failures are reported through Status "error" with the steps that
// ran so far.
func (p *Pipeline) Process(ctx context.Context, data []byte, filename string) (res Result) {
	rid := common.RequestIDFromContext(ctx)
	r := &run{p: p, ctx: ctx}

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: unexpected failure: %v", common.ErrInternal, rec)
			p.logger.Error("pipeline.process.panic", "req_id", rid, "filename", filename, "error", err)
			res = failed(err, r.steps)
		}
	}()

	startAttrs := []any{"req_id", rid, "filename", filename, "bytes", len(data)}
	if fid := common.FormIDFromContext(ctx); fid != "" {
		startAttrs = append(startAttrs, "form_id", fid)
	}
	p.logger.Info("pipeline.process.start", startAttrs...)
	start := p.now()

	// 1. validation
	t := r.begin(constants.StepValidation)
	img, info, err := p.decode(ctx, data)
	if err != nil {
		r.end(constants.StepValidation, t, constants.StepFailed, map[string]any{"error": err.Error()})
		appErr := common.InputError("input is not a readable image", err)
		p.logger.Warn("pipeline.process.invalid_image", "req_id", rid, "filename", filename, "error", err)
		return failed(appErr, r.steps)
	}
	r.end(constants.StepValidation, t, constants.StepCompleted, info)

	// 2. visual extraction
	t = r.begin(constants.StepVisualExtraction)
	raw := p.detector.Detect(ctx, img)
	r.end(constants.StepVisualExtraction, t, constants.StepCompleted, raw)

	// 3. structuring
	t = r.begin(constants.StepExtraction)
	detJSON, err := json.Marshal(raw)
	if err != nil {
		r.end(constants.StepExtraction, t, constants.StepFailed, map[string]any{"error": err.Error()})
		return failed(fmt.Errorf("%w: encode detection: %w", common.ErrInternal, err), r.steps)
	}
	resp, err := p.generator.Generate(ctx, llm.BuildPrompt(detJSON, filename))
	if err != nil {
		r.end(constants.StepExtraction, t, constants.StepFailed, map[string]any{"error": err.Error()})
		p.logger.Error("pipeline.process.generation_failed", "req_id", rid, "filename", filename, "error", err)
		return failed(common.GenerationError("structuring step failed", err), r.steps)
	}
	rec := p.recoverer.Recover(resp.Content)
	if rec.Fallback() {
		p.logger.Warn("pipeline.process.malformed_response",
			"req_id", rid,
			"error", common.ErrMalformedResponse,
			"content_len", len(resp.Content),
		)
	}
	r.end(constants.StepExtraction, t, constants.StepCompleted, rec.Object)

	// 4. validation & cleaning
	t = r.begin(constants.StepCleaning)
	doc := schema.Coerce(rec.Object)
	quality := raw.Quality()
	doc.ConfidenceScore = adjustConfidence(doc.ConfidenceScore, quality)
	if err := schema.Validate(doc); err != nil {
		p.logger.Warn("pipeline.process.schema_mismatch", "req_id", rid, "error", err)
	}
	r.end(constants.StepCleaning, t, constants.StepCompleted, doc)

	latency := p.now().Sub(start)
	p.logger.Info("pipeline.process.ok",
		"req_id", rid,
		"filename", filename,
		"strategy", rec.Strategy,
		"degraded", raw.Degraded,
		"detection_quality", quality,
		"sections", len(doc.Sections),
		"fields", doc.FieldCount(),
		"confidence", doc.ConfidenceScore,
		"elapsed_ms", latency.Milliseconds(),
	)

	return Result{
		Status:          constants.ResultSuccess,
		Filename:        filename,
		Data:            &doc,
		UnclearFields:   doc.UnclearFields,
		ConfidenceScore: doc.ConfidenceScore,
		RawText:         raw.VisualContext,
		Steps:           r.steps,
		LatencyMS:       latency.Milliseconds(),
	}
}

func (p *Pipeline) decode(ctx context.Context, data []byte) (image.Image, ImageInfo, error) {
	if p.converter == nil || !p.converter.Handles(data) {
		return DecodeImage(data, p.maxPixels)
	}
	converted, err := p.converter.Convert(ctx, data)
	if err != nil {
		return nil, ImageInfo{}, err
	}
	img, info, err := DecodeImage(converted, p.maxPixels)
	info.Bytes = len(data)
	return img, info, err
}

func failed(err error, steps []Step) Result {
	return Result{
		Status: constants.ResultError,
		Error:  err.Error(),
		Steps:  steps,
		Err:    err,
	}
}

// IsInputError reports whether a failed Result was caused by unreadable input.
func (r Result) IsInputError() bool {
	return r.Err != nil && errors.Is(r.Err, common.ErrInvalidImage)
}
