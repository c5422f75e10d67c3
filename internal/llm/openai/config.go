package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Provider endpoints speaking the chat/completions protocol.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	GroqBaseURL   = "https://api.groq.com/openai/v1"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultGroqModel   = "llama-3.3-70b-versatile"
)

// Config for an OpenAI-compatible client.
type Config struct {
	Provider    string // "openai" (default) or "groq"; picks BaseURL and Model defaults
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32       // 0..2
	MaxTokens   int           // 0 leaves the provider default
	JSONMode    bool          // request response_format json_object
	Timeout     time.Duration // http client timeout
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
		if cfg.Provider == "groq" {
			cfg.BaseURL = GroqBaseURL
		}
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
		if cfg.Provider == "groq" {
			cfg.Model = defaultGroqModel
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model is the configured model name.
func (c *Client) Model() string { return c.cfg.Model }
