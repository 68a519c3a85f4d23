package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskStore writes fetched media to a local directory, creating it on
// first use.
type DiskStore struct {
	dir    string
	logger *slog.Logger
}

func NewDiskStore(dir string, logger *slog.Logger) *DiskStore {
	return &DiskStore{dir: dir, logger: logger.With("component", "media_store")}
}

// Save persists data under filename and returns the full path written.
func (s *DiskStore) Save(ctx context.Context, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	s.logger.InfoContext(ctx, "media saved", "path", path, "bytes", len(data))
	return path, nil
}
