package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/form-extractor/constants"
)

// ErrSkipped may be returned by a FileFunc to count a file as skipped
// rather than succeeded.
var ErrSkipped = errors.New("skipped")

// FileResult is the per-file outcome of a directory walk.
type FileResult struct {
	Path string
	Err  string
}

type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Skipped   uint32
	Failed    uint32
}

// FileFunc handles one matched image.
type FileFunc func(ctx context.Context, path string) error

// WalkOptions filters the walk. A nil Exts accepts every allowed image extension.
type WalkOptions struct {
	Exts       map[string]struct{}
	SkipHidden bool
}

// Collect walks root and returns every matching image path in lexical order.
func Collect(root string, opts WalkOptions) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	exts := opts.Exts
	if exts == nil {
		exts = constants.AllowedExtensions
	}

	var paths []string
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			stats.Failed++
			return nil // continue walking
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, stats, fmt.Errorf("walk: %w", err)
	}
	return paths, stats, nil
}

// Tally folds per-file errors into stats and results.
func Tally(stats *DirStats, path string, err error) FileResult {
	switch {
	case err == nil:
		stats.Succeeded++
		return FileResult{Path: path}
	case errors.Is(err, ErrSkipped):
		stats.Skipped++
		return FileResult{Path: path}
	default:
		stats.Failed++
		return FileResult{Path: path, Err: err.Error()}
	}
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
