package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/form-extractor/internal/app"
	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/export"
	"github.com/joseph-ayodele/form-extractor/internal/ingest"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory to process form images from (required)")
		out      = flag.String("out", "", "directory for per-image result JSON (optional, defaults to <dir>/results)")
		summary  = flag.String("xlsx", "", "summary XLSX path (optional, defaults to <dir>/summary.xlsx)")
		workers  = flag.Int("workers", 4, "images processed concurrently")
		watch    = flag.Bool("watch", false, "keep running and process images as they appear")
		debounce = flag.Duration("debounce", 500*time.Millisecond, "watch mode: wait for writes to settle")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(*dir, "results")
	}
	if *summary == "" {
		*summary = filepath.Join(*dir, "summary.xlsx")
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log)
	if err := cfg.ValidateExtraction(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, closeGen, err := app.NewPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init pipeline", "error", err)
		os.Exit(1)
	}
	defer closeGen()

	batch := ingest.NewBatch(pipe, *dir, *out, *workers, logger)
	walk := ingest.WalkOptions{SkipHidden: true}

	if *watch {
		runWatch(ctx, batch, *dir, *debounce, logger)
	} else {
		paths, walkStats, err := ingest.Collect(*dir, walk)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("starting batch", "dir", *dir, "images", len(paths), "workers", *workers)
		results, stats := batch.Run(ctx, paths)
		stats.Scanned = walkStats.Scanned
		for _, r := range results {
			if r.Err != "" {
				logger.Warn("batch.file.failed", "path", r.Path, "error", r.Err)
			}
		}
		logger.Info("batch complete",
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"succeeded", stats.Succeeded,
			"skipped", stats.Skipped,
			"failed", stats.Failed,
		)
	}

	if err := writeSummary(batch, *summary, logger); err != nil {
		logger.Error("failed to write summary", "path", *summary, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Summary written to %s\n", *summary)
}

func runWatch(ctx context.Context, batch *ingest.Batch, dir string, debounce time.Duration, logger *slog.Logger) {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    debounce,
		SkipHidden:  true,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "dir", dir, "error", err)
		return
	}
	logger.Info("watching", "dir", dir)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				return
			}
			if err := batch.File(ctx, p); err != nil {
				logger.Warn("batch.file.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

func writeSummary(batch *ingest.Batch, path string, logger *slog.Logger) error {
	body, err := export.NewService(logger).HistoryXLSX(batch.Rows())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return err
	}
	logger.Info("summary written", "path", path)
	return nil
}
