package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/datallboy/gothumb/internal/domain"
)

// FileFetcher reads images from file:// urls on the local disk.
type FileFetcher struct {
	maxBytes int64
}

func NewFile(maxBytes int64) *FileFetcher {
	return &FileFetcher{maxBytes: maxBytes}
}

func (f *FileFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	data, err := f.read(ctx, rawURL)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: err}
	}
	return data, nil
}

func (f *FileFetcher) read(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	file, err := os.Open(u.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if f.maxBytes <= 0 {
		return io.ReadAll(file)
	}
	data, err := io.ReadAll(io.LimitReader(file, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
