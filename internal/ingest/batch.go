package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/form-extractor/internal/common"
	"github.com/joseph-ayodele/form-extractor/internal/export"
	"github.com/joseph-ayodele/form-extractor/internal/pipeline"
)

// Processor runs the extraction pipeline on one image.
type Processor interface {
	Process(ctx context.Context, data []byte, filename string) pipeline.Result
}

// Batch runs a Processor over image files, writing one result JSON per
// image into outDir when it is set. Result names keep the image's path
// relative to root, so scan.png, scan.jpg and sub/scan.png do not clash.
type Batch struct {
	proc    Processor
	root    string
	outDir  string
	workers int
	logger  *slog.Logger

	mu   sync.Mutex
	rows []export.HistoryRow
}

func NewBatch(proc Processor, root, outDir string, workers int, logger *slog.Logger) *Batch {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Batch{proc: proc, root: root, outDir: outDir, workers: workers, logger: logger}
}

// Run processes paths with at most workers in flight. A failed extraction
// counts as Failed in the stats but does not stop the batch.
func (b *Batch) Run(ctx context.Context, paths []string) ([]FileResult, DirStats) {
	var (
		mu      sync.Mutex
		stats   DirStats
		results = make([]FileResult, len(paths))
	)
	stats.Matched = uint32(len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, path := range paths {
		g.Go(func() error {
			err := b.File(gctx, path)
			mu.Lock()
			results[i] = Tally(&stats, path, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results, stats
}

// File processes one image and records its history row.
func (b *Batch) File(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return ErrSkipped
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	ctx = common.WithRequestID(ctx, "batch-"+filepath.Base(path))
	res := b.proc.Process(ctx, data, filepath.Base(path))
	b.record(path, res)

	if b.outDir != "" {
		if err := b.writeJSON(path, res); err != nil {
			return err
		}
	}
	if !res.OK() {
		return fmt.Errorf("extraction failed: %s", res.Error)
	}
	b.logger.Info("batch.file.ok",
		"path", path,
		"document_type", res.Data.DocumentType,
		"confidence", res.ConfidenceScore,
		"elapsed_ms", res.LatencyMS,
	)
	return nil
}

// Rows returns the history rows recorded so far in completion order.
func (b *Batch) Rows() []export.HistoryRow {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]export.HistoryRow(nil), b.rows...)
}

func (b *Batch) record(path string, res pipeline.Result) {
	row := export.HistoryRow{
		Filename:  filepath.Base(path),
		Status:    res.Status,
		LatencyMS: res.LatencyMS,
		Error:     res.Error,
	}
	if res.Data != nil {
		row.DocumentType = res.Data.DocumentType
		row.ConfidenceScore = res.ConfidenceScore
		row.FieldCount = res.Data.FieldCount()
	}
	b.mu.Lock()
	b.rows = append(b.rows, row)
	b.mu.Unlock()
}

func (b *Batch) writeJSON(path string, res pipeline.Result) error {
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	body, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	name := ResultName(b.root, path)
	if err := os.WriteFile(filepath.Join(b.outDir, name), body, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// ResultName maps an image path to its result file name: the path relative
// to root with separators replaced by "__", plus ".json". Paths outside
// root fall back to the base name.
func ResultName(root, path string) string {
	name := filepath.Base(path)
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			name = strings.ReplaceAll(filepath.ToSlash(rel), "/", "__")
		}
	}
	return name + ".json"
}
