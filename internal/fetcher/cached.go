package fetcher

import (
	"context"

	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/infra/logger"
)

// BlobStore persists raw image bytes by url, making it swappable (File vs SQLite vs Postgres)
type BlobStore interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Put(ctx context.Context, url string, data []byte) error
	Delete(ctx context.Context, url string) error
}

// CachedFetcher "Decorates" a fetcher with a persistent second cache tier.
// Only bytes with a readable image header are stored, so a bad origin response
// is retried on the next fetch instead of being served forever.
type CachedFetcher struct {
	inner domain.ImageFetcher
	store BlobStore
	log   *logger.Logger
}

func NewCached(inner domain.ImageFetcher, store BlobStore, log *logger.Logger) *CachedFetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedFetcher{inner: inner, store: store, log: log}
}

func (c *CachedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	// 1. Check the store first
	if data, err := c.store.Get(ctx, url); err == nil {
		if _, _, _, err := domain.Sniff(data); err == nil {
			c.log.Debug("Blob store hit for image: %s", url)
			return data, nil
		}
		c.log.Warn("Dropping unreadable stored image %s", url)
		if err := c.store.Delete(ctx, url); err != nil {
			c.log.Warn("Failed to delete stored image %s: %v", url, err)
		}
	}

	// 2. Miss: call the real fetcher (HTTP, S3, file)
	data, err := c.inner.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	// 3. Save for next time. A failed write only costs a refetch later.
	if _, _, _, err := domain.Sniff(data); err != nil {
		c.log.Debug("Not persisting %s: %v", url, err)
		return data, nil
	}
	if err := c.store.Put(ctx, url, data); err != nil {
		c.log.Warn("Failed to persist image %s: %v", url, err)
	}
	return data, nil
}
