package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/datallboy/gothumb/internal/domain"
)

const tracerName = "gothumb-fetcher"

type HTTPOptions struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Client    *http.Client // optional, overrides Timeout
}

// HTTPFetcher downloads images over http and https.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
}

func NewHTTP(opts HTTPOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &HTTPFetcher{
		client:    client,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "HTTPFetcher.Fetch",
		trace.WithAttributes(attribute.String("image.url", url)))
	defer span.End()

	data, err := f.fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.FetchError{URL: url, Err: err}
	}
	span.SetAttributes(attribute.Int("image.bytes", len(data)))
	return data, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	if f.maxBytes <= 0 {
		return io.ReadAll(resp.Body)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, ErrTooLarge
	}

	// Read one byte past the limit to detect oversized bodies without a Content-Length
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}
