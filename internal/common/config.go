package common

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Recovery RecoveryConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // "sqlite" or "postgres"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// OCRConfig holds text detection configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	PSM           int
	OEM           int
	LanguageTag   string
	HeicConverter string // "heif-convert", "magick" or "sips"; empty disables HEIC
	MaxPixels     int    // width*height ceiling checked before decoding
}

// LLMConfig holds generator configuration
type LLMConfig struct {
	Provider    string // "groq", "openai" or "gemini"
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
	Timeout     time.Duration
}

// StorageConfig selects where uploaded images are kept.
type StorageConfig struct {
	Backend      string // "local" or "s3"
	UploadDir    string
	Bucket       string
	AwsRegion    string
	AwsAccessKey string
	AwsSecretKey string
}

// QueueConfig sizes the async processing queue.
type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

// RecoveryConfig tunes response recovery.
type RecoveryConfig struct {
	MaxRawChars int
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string // "json" or "text"
	// Output defaults to stdout.
	Output io.Writer
}

// LoadConfig loads configuration from a .env file (if present) and the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "groq"))
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:              getEnv("DB_URL", "file:formextract.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8001"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":9090"),
			MaxUploadBytes: getEnvAsInt("MAX_UPLOAD_MB", 20) << 20,
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 2*time.Minute),
			CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PSM:           getEnvAsInt("TESSERACT_PSM", 0),
			OEM:           getEnvAsInt("TESSERACT_OEM", 0),
			LanguageTag:   getEnv("OCR_LANGUAGE", "en"),
			HeicConverter: getEnv("HEIC_CONVERTER", ""),
			MaxPixels:     getEnvAsInt("OCR_MAX_PIXELS", 80_000_000),
		},
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getEnv("LLM_MODEL", ""),
			APIKey:      getEnv("LLM_API_KEY", providerAPIKey(provider)),
			BaseURL:     getEnv("LLM_BASE_URL", ""),
			Temperature: getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 4096),
			JSONMode:    getEnvAsBool("LLM_JSON_MODE", false),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Backend:      strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
			Bucket:       getEnv("S3_BUCKET", ""),
			AwsRegion:    getEnv("AWS_REGION", ""),
			AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
			AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("QUEUE_WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Recovery: RecoveryConfig{
			MaxRawChars: getEnvAsInt("RECOVERY_MAX_RAW_CHARS", 0),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func providerAPIKey(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("GROQ_API_KEY")
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError(CodeConfig, "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			return NewAppError(CodeConfig, "S3_BUCKET is required for the s3 storage backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "STORAGE_BACKEND must be local or s3", ErrInvalidInput)
	}
	return c.ValidateExtraction()
}

// ValidateExtraction checks only what the extraction pipeline needs, for
// binaries that run without a database.
func (c *Config) ValidateExtraction() error {
	switch c.LLM.Provider {
	case "groq", "openai", "gemini":
	default:
		return NewAppError(CodeConfig, "LLM_PROVIDER must be groq, openai or gemini", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "LLM_API_KEY is required", ErrInvalidInput)
	}
	if c.Recovery.MaxRawChars < 0 {
		return NewAppError(CodeConfig, "RECOVERY_MAX_RAW_CHARS must not be negative", ErrInvalidInput)
	}
	return nil
}

// NewLogger builds the process logger from LogConfig.
func NewLogger(cfg LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}
