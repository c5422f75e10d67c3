package storage

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store keeps uploaded images by key.
type Store interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds the storage key for an upload: a random prefix and the
// sanitized base name, so two uploads of the same name never collide.
func NewKey(filename string) string {
	return uuid.NewString() + "_" + sanitizeName(filename)
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == '/', r == ':', r == '*', r == '?', r == '"', r == '<', r == '>', r == '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
