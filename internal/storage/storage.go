package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores one encoded artifact under path.
type Sink interface {
	Save(ctx context.Context, path string, data []byte) error
}

// LocalSink writes artifacts to the filesystem, creating parent directories
// on demand. Directories are never removed.
type LocalSink struct{}

func (LocalSink) Save(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}
