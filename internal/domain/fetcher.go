package domain

import "context"

// ImageFetcher is the contract any image source (HTTP, S3, local disk) must fulfill.
// Fetch blocks until the raw bytes are available or the fetch fails.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a plain function to ImageFetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}
