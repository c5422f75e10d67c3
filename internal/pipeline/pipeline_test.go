package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/llm"
	"github.com/joseph-ayodele/form-extractor/internal/ocr"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for x := 0; x < 8; x++ {
		img.SetGray(x, 2, color.Gray{Y: 200})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type detectorFunc func(ctx context.Context, img image.Image) ocr.RawDetectionResult

func (f detectorFunc) Detect(ctx context.Context, img image.Image) ocr.RawDetectionResult {
	return f(ctx, img)
}

func goodDetection() ocr.RawDetectionResult {
	return ocr.RawDetectionResult{
		Elements: []ocr.Fragment{
			{Label: ocr.DetectedTextLabel, Text: "Name: Jane Doe", Confidence: 0.95},
			{Label: ocr.DetectedTextLabel, Text: "Date: 01/02/2024", Confidence: 0.9, Position: ocr.Position{Y: 20}},
		},
		VisualContext:    "Name: Jane Doe\nDate: 01/02/2024",
		DetectedLanguage: "en",
	}
}

func staticGenerator(content string) llm.Generator {
	return llm.GeneratorFunc(func(context.Context, llm.Prompt) (llm.Response, error) {
		return llm.Response{Content: content, Model: "test"}, nil
	})
}

func stepNames(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.StepName
	}
	return out
}

func TestProcess_Success(t *testing.T) {
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		staticGenerator(`{"patient_name": "Jane", "address": {"city":"X","zip":"1"}}`),
		quietLogger(),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if !res.OK() {
		t.Fatalf("expected success, got %q (%v)", res.Error, res.Err)
	}
	if res.Filename != "form.png" {
		t.Errorf("filename = %q", res.Filename)
	}
	want := []string{constants.StepValidation, constants.StepVisualExtraction, constants.StepExtraction, constants.StepCleaning}
	if got := stepNames(res.Steps); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("steps = %v, want %v", got, want)
	}
	for _, s := range res.Steps {
		if s.Status != constants.StepCompleted {
			t.Errorf("step %q status = %s", s.StepName, s.Status)
		}
	}
	if res.RawText != "Name: Jane Doe\nDate: 01/02/2024" {
		t.Errorf("raw_text = %q", res.RawText)
	}
	doc := res.Data
	if doc == nil || len(doc.Sections) != 2 {
		t.Fatalf("expected two sections, got %+v", doc)
	}
	if doc.Sections[0].SectionName != constants.GeneralSectionName || doc.Sections[1].SectionName != "address" {
		t.Errorf("section names = %q, %q", doc.Sections[0].SectionName, doc.Sections[1].SectionName)
	}
	if res.ConfidenceScore != constants.DefaultConfidenceScore {
		t.Errorf("confidence = %v, want %v", res.ConfidenceScore, constants.DefaultConfidenceScore)
	}
}

func TestProcess_InvalidImage(t *testing.T) {
	called := false
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult {
			called = true
			return goodDetection()
		}),
		staticGenerator(`{}`),
		quietLogger(),
	)

	for _, in := range [][]byte{nil, []byte("not an image"), []byte{0x89, 'P', 'N', 'G'}} {
		res := p.Process(context.Background(), in, "x.png")
		if res.OK() {
			t.Fatalf("expected error for %q", in)
		}
		if len(res.Steps) != 1 || res.Steps[0].StepName != constants.StepValidation || res.Steps[0].Status != constants.StepFailed {
			t.Errorf("steps = %+v", res.Steps)
		}
		if !errors.Is(res.Err, common.ErrInvalidImage) || !res.IsInputError() {
			t.Errorf("err = %v, want ErrInvalidImage", res.Err)
		}
		if res.Error == "" {
			t.Error("error message is empty")
		}
	}
	if called {
		t.Error("detector ran after failed validation")
	}
}

func TestProcess_GenerationFailure(t *testing.T) {
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		llm.GeneratorFunc(func(context.Context, llm.Prompt) (llm.Response, error) {
			return llm.Response{}, errors.New("upstream 503")
		}),
		quietLogger(),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if res.OK() {
		t.Fatal("expected error")
	}
	if !errors.Is(res.Err, common.ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", res.Err)
	}
	if res.IsInputError() {
		t.Error("generation failure reported as input error")
	}
	if len(res.Steps) != 3 {
		t.Fatalf("steps = %v", stepNames(res.Steps))
	}
	if res.Steps[2].Status != constants.StepFailed {
		t.Errorf("structuring step status = %s", res.Steps[2].Status)
	}
}

func TestProcess_ProseFallback(t *testing.T) {
	prose := "I could not find any form on this page, sorry."
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		staticGenerator(prose),
		quietLogger(),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if !res.OK() {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.Data.SignaturesDetected {
		t.Error("signatures_detected should be false")
	}
	var hits int
	for _, s := range res.Data.Sections {
		for _, f := range s.Fields {
			if f.FieldValue == prose {
				hits++
			}
		}
	}
	if hits != 1 {
		t.Errorf("prose preserved in %d fields, want 1", hits)
	}
	if res.ConfidenceScore >= constants.DefaultConfidenceScore {
		t.Errorf("confidence %v not lowered", res.ConfidenceScore)
	}
}

func TestProcess_DegradedDetection(t *testing.T) {
	var prompt llm.Prompt
	adapter := ocr.NewAdapter(ocr.DetectorFunc(func(context.Context, image.Image) ([]ocr.Fragment, error) {
		panic("model weights missing")
	}), "", quietLogger())

	p := New(adapter, llm.GeneratorFunc(func(_ context.Context, pr llm.Prompt) (llm.Response, error) {
		prompt = pr
		return llm.Response{Content: `{"document_type":"Intake","summary":"s","sections":[]}`}, nil
	}), quietLogger())

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if !res.OK() {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.RawText != ocr.FailedVisualContext {
		t.Errorf("raw_text = %q", res.RawText)
	}
	if !strings.Contains(prompt.User, ocr.FailedVisualContext) {
		t.Error("prompt does not carry the degraded detection result")
	}
	want := 0.3 * constants.DefaultConfidenceScore
	if math.Abs(res.ConfidenceScore-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", res.ConfidenceScore, want)
	}
}

func TestProcess_PanicBecomesError(t *testing.T) {
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { panic("boom") }),
		staticGenerator(`{}`),
		quietLogger(),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if res.OK() {
		t.Fatal("expected error")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Errorf("error = %q", res.Error)
	}
	if got := stepNames(res.Steps); len(got) != 1 || got[0] != constants.StepValidation {
		t.Errorf("steps = %v", got)
	}
}

type recordingObserver struct {
	mu     sync.Mutex
	events []string
	panics bool
}

func (o *recordingObserver) StageStarted(_ context.Context, stage string) {
	o.mu.Lock()
	o.events = append(o.events, "start "+stage)
	o.mu.Unlock()
	if o.panics {
		panic("observer broke")
	}
}

func (o *recordingObserver) StageFinished(_ context.Context, stage string, status constants.StepStatus, _ time.Duration) {
	o.mu.Lock()
	o.events = append(o.events, "end "+stage+" "+string(status))
	o.mu.Unlock()
	if o.panics {
		panic("observer broke")
	}
}

func TestProcess_Observers(t *testing.T) {
	rec := &recordingObserver{}
	bad := &recordingObserver{panics: true}
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		staticGenerator(`{"document_type":"Invoice","summary":"x","sections":[]}`),
		quietLogger(),
		WithObserver(bad),
		WithObserver(rec),
		WithObserver(nil),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if !res.OK() {
		t.Fatalf("observer panic changed outcome: %q", res.Error)
	}
	if len(rec.events) != 8 {
		t.Fatalf("events = %v", rec.events)
	}
	if rec.events[0] != "start "+constants.StepValidation || rec.events[7] != "end "+constants.StepCleaning+" COMPLETED" {
		t.Errorf("events = %v", rec.events)
	}
	if len(bad.events) != 8 {
		t.Errorf("panicking observer saw %d events", len(bad.events))
	}
}

func TestProcess_LatencyFromClock(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var ticks int
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 10 * time.Millisecond)
	}
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		staticGenerator(`{"document_type":"Invoice","summary":"x","sections":[]}`),
		quietLogger(),
		WithClock(clock),
	)

	res := p.Process(context.Background(), pngBytes(t), "form.png")
	if res.LatencyMS <= 0 {
		t.Errorf("latency_ms = %d", res.LatencyMS)
	}
}

func TestResult_JSONShapes(t *testing.T) {
	p := New(
		detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
		staticGenerator("Here you go:\n```json\n{\"document_type\":\"Invoice\",\"summary\":\"x\",\"sections\":[]}\n```"),
		quietLogger(),
	)

	ok := p.Process(context.Background(), pngBytes(t), "form.png")
	data, err := json.Marshal(ok)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"status", "filename", "data", "unclear_fields", "confidence_score", "raw_text", "steps", "latency_ms"} {
		if _, found := m[k]; !found {
			t.Errorf("success body missing %q", k)
		}
	}
	if _, found := m["error"]; found {
		t.Error("success body carries error")
	}
	if doc, _ := m["data"].(map[string]any); doc["document_type"] != "Invoice" {
		t.Errorf("document_type = %v", doc["document_type"])
	}

	bad := p.Process(context.Background(), []byte("nope"), "x.png")
	data, err = json.Marshal(bad)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	m = nil
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m) != 3 || m["status"] != "error" || m["error"] == "" {
		t.Errorf("error body = %s", data)
	}
}

func TestAdjustConfidence(t *testing.T) {
	tests := []struct {
		score, quality, want float64
	}{
		{0.85, 0.9, 0.85},
		{0.85, 0.6, 0.85},
		{0.85, 0, 0.255},
		{0.5, 0.5, 0.5},
		{0.9, 0.4, 0.55},
	}
	for _, tt := range tests {
		if got := adjustConfidence(tt.score, tt.quality); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("adjustConfidence(%v, %v) = %v, want %v", tt.score, tt.quality, got, tt.want)
		}
	}
}

func TestDecodeImage_TooLarge(t *testing.T) {
	if _, _, err := DecodeImage(pngBytes(t), 10); err == nil {
		t.Error("expected size limit error")
	}
	_, info, err := DecodeImage(pngBytes(t), 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Format != "png" || info.Width != 8 || info.Height != 4 {
		t.Errorf("info = %+v", info)
	}
}

func TestProcess_ImageConverter(t *testing.T) {
	heic := append([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p'}, []byte("heic\x00\x00\x00\x00")...)
	converted := pngBytes(t)
	runner := ocr.RunnerFunc(func(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
		return nil, nil, os.WriteFile(args[len(args)-1], converted, 0o600)
	})

	var (
		nilConverter *ocr.HEICConverter
		p            = New(
			detectorFunc(func(context.Context, image.Image) ocr.RawDetectionResult { return goodDetection() }),
			staticGenerator(`{"name":"Jane"}`),
			quietLogger(),
			WithImageConverter(nilConverter),
		)
	)
	if res := p.Process(context.Background(), heic, "form.heic"); !res.IsInputError() {
		t.Fatalf("without converter: status=%s err=%v", res.Status, res.Err)
	}

	WithImageConverter(ocr.NewHEICConverter("heif-convert", runner, quietLogger()))(p)
	res := p.Process(context.Background(), heic, "form.heic")
	if !res.OK() {
		t.Fatalf("with converter: %s", res.Error)
	}
	info, ok := res.Steps[0].Payload.(ImageInfo)
	if !ok || info.Format != "png" || info.Bytes != len(heic) {
		t.Errorf("validation payload = %+v", res.Steps[0].Payload)
	}
}
