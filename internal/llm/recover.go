package llm

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

// Strategy names, in the order they are tried.
const (
	StrategyDirect       = "direct"
	StrategyLabeledFence = "labeled_fence"
	StrategyBraceFence   = "brace_fence"
	StrategyBraceSpan    = "brace_span"
	StrategyFallback     = "fallback"
)

// Fallback document values.
const (
	FallbackDocumentType = "Extraction Result"
	FallbackSummary      = "The model response could not be parsed as structured data. The original response is preserved below."
	FallbackSectionName  = "Auto-Recovered Data"
	FallbackStatusField  = "Status"
	FallbackStatusValue  = "Success with Formatting Fallback"
	FallbackRawField     = "Raw Model Output"
	FallbackConfidence   = "0.5"
)

var (
	reLabeledFence = regexp.MustCompile("(?is)```[ \\t]*json[ \\t]*\\r?\\n?(.*?)```")
	reAnyFence     = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+-]*[ \\t]*\\r?\\n)?(.*?)```")
)

// Strategy is one pure parsing attempt.
type Strategy struct {
	Name  string
	Parse func(text string) (*schema.Object, bool)
}

// DefaultStrategies returns the parse attempts in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyDirect, Parse: parseDirect},
		{Name: StrategyLabeledFence, Parse: parseLabeledFence},
		{Name: StrategyBraceFence, Parse: parseBraceFence},
		{Name: StrategyBraceSpan, Parse: parseBraceSpan},
	}
}

// Recovery is the outcome of Recover.
type Recovery struct {
	Object   *schema.Object
	Strategy string
}

// Fallback reports whether no strategy could parse the text.
func (r Recovery) Fallback() bool { return r.Strategy == StrategyFallback }

// Recoverer turns free model text into a JSON object. It never fails.
type Recoverer struct {
	strategies  []Strategy
	maxRawChars int
}

type RecovererOption func(*Recoverer)

// WithMaxRawChars caps the raw text kept in the fallback; 0 keeps everything.
func WithMaxRawChars(n int) RecovererOption {
	return func(r *Recoverer) {
		if n > 0 {
			r.maxRawChars = n
		}
	}
}

// WithStrategies replaces the parse attempts.
func WithStrategies(s ...Strategy) RecovererOption {
	return func(r *Recoverer) {
		r.strategies = s
	}
}

func NewRecoverer(opts ...RecovererOption) *Recoverer {
	r := &Recoverer{strategies: DefaultStrategies()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Recover tries each strategy in order; the first object wins. If none
// parses, the text is wrapped in a fallback document.
func (r *Recoverer) Recover(text string) Recovery {
	for _, s := range r.strategies {
		if obj, ok := s.Parse(text); ok {
			return Recovery{Object: obj, Strategy: s.Name}
		}
	}
	return Recovery{Object: r.fallback(text), Strategy: StrategyFallback}
}

func (r *Recoverer) fallback(text string) *schema.Object {
	raw := text
	if r.maxRawChars > 0 && utf8.RuneCountInString(raw) > r.maxRawChars {
		runes := []rune(raw)
		raw = string(runes[:r.maxRawChars]) + "...(truncated)"
	}

	status := schema.NewObject()
	status.Set("field_name", FallbackStatusField)
	status.Set("field_value", FallbackStatusValue)
	status.Set("confidence", string(schema.ConfidenceLow))

	rawField := schema.NewObject()
	rawField.Set("field_name", FallbackRawField)
	rawField.Set("field_value", raw)
	rawField.Set("confidence", string(schema.ConfidenceLow))

	section := schema.NewObject()
	section.Set("section_name", FallbackSectionName)
	section.Set("fields", []any{status, rawField})

	doc := schema.NewObject()
	doc.Set("document_type", FallbackDocumentType)
	doc.Set("summary", FallbackSummary)
	doc.Set("sections", []any{section})
	doc.Set("key_entities", schema.NewObject())
	doc.Set("signatures_detected", false)
	doc.Set("confidence_score", json.Number(FallbackConfidence))
	doc.Set("unclear_fields", []any{})
	return doc
}

func parseObject(s string) (*schema.Object, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "\ufeff"))
	if s == "" {
		return nil, false
	}
	obj, err := schema.ParseObject([]byte(s))
	if err != nil {
		return nil, false
	}
	return obj, true
}

func parseDirect(text string) (*schema.Object, bool) {
	return parseObject(text)
}

func parseLabeledFence(text string) (*schema.Object, bool) {
	for _, m := range reLabeledFence.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseBraceFence(text string) (*schema.Object, bool) {
	for _, m := range reAnyFence.FindAllStringSubmatch(text, -1) {
		inner := strings.TrimSpace(m[1])
		if !strings.HasPrefix(inner, "{") || !strings.HasSuffix(inner, "}") {
			continue
		}
		if obj, ok := parseObject(inner); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseBraceSpan(text string) (*schema.Object, bool) {
	i := strings.Index(text, "{")
	j := strings.LastIndex(text, "}")
	if i < 0 || j <= i {
		return nil, false
	}
	return parseObject(text[i : j+1])
}
