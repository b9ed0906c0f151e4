package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/datallboy/gothumb/internal/domain"
)

// Router picks a fetcher by url scheme.
type Router struct {
	schemes map[string]domain.ImageFetcher
}

func NewRouter() *Router {
	return &Router{schemes: make(map[string]domain.ImageFetcher)}
}

// Handle registers f for every given scheme, replacing earlier registrations.
func (r *Router) Handle(f domain.ImageFetcher, schemes ...string) *Router {
	for _, s := range schemes {
		r.schemes[strings.ToLower(s)] = f
	}
	return r
}

func (r *Router) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %v", ErrInvalidURL, err)}
	}

	f, ok := r.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)}
	}
	return f.Fetch(ctx, rawURL)
}

// Schemes lists the registered schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.schemes))
	for s := range r.schemes {
		out = append(out, s)
	}
	return out
}
