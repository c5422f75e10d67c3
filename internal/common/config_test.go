package common

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "LLM_PROVIDER", "MAX_UPLOAD_MB", "CORS_ORIGINS", "QUEUE_WORKERS", "LLM_TIMEOUT", "OCR_MAX_PIXELS"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()

	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("provider = %q", cfg.LLM.Provider)
	}
	if cfg.Server.MaxUploadBytes != 20<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.LLM.Timeout != 60*time.Second {
		t.Errorf("llm timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.OCR.MaxPixels != 80_000_000 {
		t.Errorf("max pixels = %d", cfg.OCR.MaxPixels)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("CORS_ORIGINS", "http://a, ,http://b")
	t.Setenv("QUEUE_WORKERS", "not-a-number")
	t.Setenv("LLM_JSON_MODE", "true")
	t.Setenv("LLM_TEMPERATURE", "0.4")
	t.Setenv("OCR_MAX_PIXELS", "4000000")

	cfg := LoadConfig()
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.LLM.APIKey != "g-key" {
		t.Errorf("api key = %q", cfg.LLM.APIKey)
	}
	if cfg.Server.MaxUploadBytes != 5<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes)
	}
	if strings.Join(cfg.Server.CORSOrigins, "|") != "http://a|http://b" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Queue.Workers != 4 {
		t.Errorf("workers = %d, want default on parse failure", cfg.Queue.Workers)
	}
	if !cfg.LLM.JSONMode || cfg.LLM.Temperature != float32(0.4) {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.OCR.MaxPixels != 4_000_000 {
		t.Errorf("max pixels = %d", cfg.OCR.MaxPixels)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Storage:  StorageConfig{Backend: "local"},
			LLM:      LLMConfig{Provider: "groq", APIKey: "k"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"no dsn", func(c *Config) { c.Database.DSN = "" }, false},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3" }, false},
		{"s3 with bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.Bucket = "b" }, true},
		{"bad backend", func(c *Config) { c.Storage.Backend = "ftp" }, false},
		{"bad provider", func(c *Config) { c.LLM.Provider = "claude" }, false},
		{"no key", func(c *Config) { c.LLM.APIKey = "" }, false},
		{"negative raw chars", func(c *Config) { c.Recovery.MaxRawChars = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok {
				var appErr *AppError
				if !errors.As(err, &appErr) || appErr.Code != CodeConfig {
					t.Fatalf("err = %v, want CONFIG_ERROR", err)
				}
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "text", Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Errorf("output = %q", out)
	}

	buf.Reset()
	NewLogger(LogConfig{Level: "bogus", Output: &buf}).Info("json")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("json output = %q", buf.String())
	}
}
