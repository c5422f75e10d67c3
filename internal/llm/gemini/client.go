package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/llm"
)

const defaultModel = "gemini-1.5-flash"

// Config for the Gemini generator.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool // ask for application/json output

	// ClientOptions are appended after the API key, e.g. a custom endpoint.
	ClientOptions []option.ClientOption
}

// Client implements llm.Generator on the Gemini API.
type Client struct {
	client *genai.Client
	cfg    Config
	log    *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, common.NewAppError(common.CodeConfig, "gemini api key is required", common.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Client{client: cl, cfg: cfg, log: logger}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *Client) Generate(ctx context.Context, p llm.Prompt) (llm.Response, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	m := c.client.GenerativeModel(c.cfg.Model)
	m.SetTemperature(c.cfg.Temperature)
	if c.cfg.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	}
	if c.cfg.JSONMode {
		m.ResponseMIMEType = "application/json"
	}
	if p.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(p.System)},
		}
	}

	c.log.Info("llm.generate.start", "req_id", rid, "provider", "gemini", "model", c.cfg.Model)

	resp, err := m.GenerateContent(ctx, genai.Text(p.User))
	if err != nil {
		c.log.Error("llm.generate.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Response{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return llm.Response{}, fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out := llm.Response{Content: b.String(), Model: c.cfg.Model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	c.log.Info("llm.generate.ok",
		"req_id", rid,
		"model", c.cfg.Model,
		"content_len", len(out.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

var _ llm.Generator = (*Client)(nil)
