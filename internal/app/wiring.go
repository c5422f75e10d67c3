package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/llm"
	"github.com/joseph-ayodele/form-extractor/internal/llm/gemini"
	"github.com/joseph-ayodele/form-extractor/internal/llm/openai"
	"github.com/joseph-ayodele/form-extractor/internal/ocr"
	"github.com/joseph-ayodele/form-extractor/internal/pipeline"
	"github.com/joseph-ayodele/form-extractor/internal/repository"
	"github.com/joseph-ayodele/form-extractor/internal/storage"
)

// NewGenerator builds the generator for cfg.Provider. The returned close
// function releases provider clients and is never nil.
func NewGenerator(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, func() error, error) {
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    cfg.JSONMode,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "openai", "groq":
		c := openai.NewClient(openai.Config{
			Provider:    cfg.Provider,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    cfg.JSONMode,
			Timeout:     cfg.Timeout,
		}, logger)
		return c, func() error { return nil }, nil
	default:
		return nil, nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown LLM provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}

// NewDetector wraps the tesseract CLI in the degrading adapter.
func NewDetector(cfg common.OCRConfig, logger *slog.Logger) *ocr.Adapter {
	t := ocr.NewTesseract(ocr.Config{
		Tesseract:     cfg.Tesseract,
		TesseractLang: cfg.TesseractLang,
		TessdataDir:   cfg.TessdataDir,
		PSM:           cfg.PSM,
		OEM:           cfg.OEM,
	}, nil, logger)
	return ocr.NewAdapter(t, cfg.LanguageTag, logger)
}

// NewPipeline assembles detection, generation and recovery from cfg.
func NewPipeline(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*pipeline.Pipeline, func() error, error) {
	gen, closeGen, err := NewGenerator(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithRecoverer(llm.NewRecoverer(llm.WithMaxRawChars(cfg.Recovery.MaxRawChars))),
		pipeline.WithImageConverter(ocr.NewHEICConverter(cfg.OCR.HeicConverter, nil, logger)),
		pipeline.WithObserver(pipeline.LogObserver{Logger: logger}),
	}
	if cfg.OCR.MaxPixels > 0 {
		opts = append(opts, pipeline.WithMaxPixels(cfg.OCR.MaxPixels))
	}
	return pipeline.New(NewDetector(cfg.OCR, logger), gen, logger, opts...), closeGen, nil
}

// NewStore picks the upload store for cfg.Backend.
func NewStore(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.Bucket,
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
		}, logger)
	case "", "local":
		return storage.NewLocalStore(cfg.UploadDir, logger)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown storage backend %q", cfg.Backend), common.ErrInvalidInput)
	}
}

// OpenDatabase connects and applies the schema.
func OpenDatabase(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repository.DB, error) {
	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
