package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/datallboy/gothumb/internal/domain"
)

// FileCache keeps raw image bytes as plain files, one per url key.
// It is the database-free blob tier for fetcher.CachedFetcher.
type FileCache struct {
	Dir string
}

func (f *FileCache) path(url string) string {
	// We use the url hash as the filename
	return filepath.Join(f.Dir, domain.URLKey(url)+".img")
}

func (f *FileCache) Get(_ context.Context, url string) ([]byte, error) {
	return os.ReadFile(f.path(url))
}

func (f *FileCache) Put(_ context.Context, url string, data []byte) error {
	// Ensure the directory exists
	if err := os.MkdirAll(f.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(f.path(url), data, 0644)
}

func (f *FileCache) Delete(_ context.Context, url string) error {
	if err := os.Remove(f.path(url)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
