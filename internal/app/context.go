package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/datallboy/gothumb/internal/cache"
	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/engine"
	"github.com/datallboy/gothumb/internal/fetcher"
	"github.com/datallboy/gothumb/internal/infra/config"
	"github.com/datallboy/gothumb/internal/infra/logger"
	"github.com/datallboy/gothumb/internal/store"
)

// Context hold the core environment and shared resources for gothumb.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Registry *prometheus.Registry
	Metrics  *engine.Metrics

	// Store is nil when the persistent tier is disabled
	Store   *store.PersistentStore
	Fetcher domain.ImageFetcher

	Thumbnails *engine.Dispatcher[string]
	Slots      *SlotBoard
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
}

// Build wires fetchers, the optional store and the thumbnail dispatcher.
// A Fetcher set before Build is used as the base fetcher instead of the scheme router.
func (a *Context) Build(ctx context.Context) error {
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = engine.NewMetrics(a.Registry)

	if a.Fetcher == nil {
		base, err := a.buildRouter(ctx)
		if err != nil {
			return err
		}
		a.Fetcher = base
	}

	switch {
	case !a.Config.Store.Enabled:
	case a.Config.Store.Driver == "file":
		a.Fetcher = fetcher.NewCached(a.Fetcher, &cache.FileCache{Dir: a.Config.Store.BlobDir}, a.Logger.Named("store"))
		a.Logger.Info("File blob cache enabled at %s", a.Config.Store.BlobDir)
	default:
		s, err := store.NewPersistentStore(ctx, a.Config.Store)
		if err != nil {
			return fmt.Errorf("failed to open image store: %w", err)
		}
		a.Store = s
		a.Fetcher = fetcher.NewCached(a.Fetcher, s, a.Logger.Named("store"))
		a.Logger.Info("Persistent image store enabled (%s)", s.Driver())
	}

	a.Slots = NewSlotBoard()
	a.Thumbnails = engine.NewDispatcher[string](engine.Options{
		Cache:      a.cacheOptions(),
		Fetcher:    a.Fetcher,
		Logger:     a.Logger.Named("engine"),
		Metrics:    a.Metrics,
		QueueLimit: a.Config.Worker.QueueLimit,
		MaxPixels:  a.maxPixels(),
	})
	a.Thumbnails.SetListener(a.Slots.Deliver)
	return nil
}

func (a *Context) buildRouter(ctx context.Context) (*fetcher.Router, error) {
	fc := a.Config.Fetch

	s3Client, err := fetcher.NewS3Client(ctx, a.Config.S3)
	if err != nil {
		return nil, err
	}

	return fetcher.NewRouter().
		Handle(fetcher.NewHTTP(fetcher.HTTPOptions{
			Timeout:   fc.Timeout,
			MaxBytes:  fc.MaxBodyBytes,
			UserAgent: fc.UserAgent,
		}), "http", "https").
		Handle(fetcher.NewFile(fc.MaxBodyBytes), "file").
		Handle(fetcher.NewS3(s3Client, fc.MaxBodyBytes), "s3"), nil
}

// cacheOptions picks a count ceiling when max_entries is set, a byte budget otherwise.
func (a *Context) cacheOptions() cache.Options {
	if n := a.Config.Cache.MaxEntries; n > 0 {
		return cache.Options{MaxCost: int64(n), Cost: cache.CountCost}
	}
	return cache.Options{MaxCost: a.Config.Cache.MaxBytes, Cost: cache.ByteCost}
}

// maxPixels is fetch.max_pixels, tightened to what fits the cache when it is byte-bounded.
// An image larger than the whole cache would be evicted the moment it was stored.
func (a *Context) maxPixels() int64 {
	limit := a.Config.Fetch.MaxPixels
	if a.Config.Cache.MaxEntries > 0 {
		return limit
	}
	if fit := a.Config.Cache.MaxBytes / 4; fit > 0 && (limit <= 0 || fit < limit) {
		return fit
	}
	return limit
}

// Close stops the dispatcher and releases the store.
func (a *Context) Close(ctx context.Context) error {
	var firstErr error
	if a.Thumbnails != nil {
		if err := a.Thumbnails.Stop(ctx); err != nil {
			firstErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
