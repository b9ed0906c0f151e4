package engine

import (
	"context"
	"sync"

	"github.com/datallboy/gothumb/internal/cache"
	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/infra/logger"
)

// Listener receives a downloaded image for the handle that asked for it.
// It runs on the dispatcher's Executor, never concurrently with itself.
type Listener[H comparable] func(handle H, img *domain.Image)

type Options struct {
	Cache      cache.Options
	Fetcher    domain.ImageFetcher
	Executor   Executor // nil: the dispatcher runs its own Looper
	Logger     *logger.Logger
	Metrics    *Metrics
	QueueLimit int
	// MaxPixels rejects images whose header declares more pixels before decoding. 0 = no limit.
	MaxPixels int64
}

// Stats is a point-in-time snapshot of the dispatcher.
type Stats struct {
	State           string `json:"state"`
	Queued          int    `json:"queued"`
	ActiveURL       string `json:"active_url,omitempty"`
	PendingRequests int    `json:"pending_requests"`
	CacheEntries    int    `json:"cache_entries"`
	CacheCost       int64  `json:"cache_cost"`
	CacheMaxCost    int64  `json:"cache_max_cost"`
}

// Dispatcher is the public face of the thumbnail loader: requesters queue downloads
// keyed by a handle, and the latest url per handle is delivered to the Listener.
type Dispatcher[H comparable] struct {
	cache    *cache.ImageCache
	requests *RequestTable[H]
	worker   *Worker[H]
	log      *logger.Logger
	metrics  *Metrics

	queueMu sync.Mutex // serializes QueueDownload's register, enqueue and rollback

	mu       sync.RWMutex
	listener Listener[H]
	executor Executor
	looper   *Looper
}

func NewDispatcher[H comparable](opts Options) *Dispatcher[H] {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	cacheOpts := opts.Cache
	onEvict := cacheOpts.OnEvict
	cacheOpts.OnEvict = func(url string, cost int64) {
		opts.Metrics.recordEviction()
		if onEvict != nil {
			onEvict(url, cost)
		}
	}

	d := &Dispatcher[H]{
		cache:    cache.New(cacheOpts),
		requests: NewRequestTable[H](),
		log:      log,
		metrics:  opts.Metrics,
		executor: opts.Executor,
	}
	if d.executor == nil {
		d.looper = NewLooper()
		d.executor = d.looper
	}

	d.worker = newWorker(workerConfig[H]{
		cache:      d.cache,
		fetcher:    opts.Fetcher,
		requests:   d.requests,
		onResult:   d.deliver,
		log:        log,
		metrics:    opts.Metrics,
		queueLimit: opts.QueueLimit,
		maxPixels:  opts.MaxPixels,
	})
	return d
}

func (d *Dispatcher[H]) SetListener(l Listener[H]) {
	d.mu.Lock()
	d.listener = l
	d.mu.Unlock()
}

// SetExecutor reattaches delivery to a new callback context. Results posted before
// the switch still run on the old one.
func (d *Dispatcher[H]) SetExecutor(e Executor) {
	if e == nil {
		return
	}
	d.mu.Lock()
	d.executor = e
	d.mu.Unlock()
}

func (d *Dispatcher[H]) Start(ctx context.Context) error {
	if err := d.worker.Start(ctx); err != nil {
		return err
	}
	if d.looper != nil {
		d.looper.Start()
	}
	d.log.Info("Thumbnail dispatcher started")
	return nil
}

// Stop shuts the worker down and then drains the owned Looper, if any.
func (d *Dispatcher[H]) Stop(ctx context.Context) error {
	if err := d.worker.Stop(ctx); err != nil {
		return err
	}
	if d.looper != nil {
		quit := make(chan struct{})
		go func() {
			d.looper.Quit()
			close(quit)
		}()
		select {
		case <-quit:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	d.log.Info("Thumbnail dispatcher stopped")
	return nil
}

// QueueDownload makes url the wanted image for handle and queues a fetch for it.
// An empty url cancels the handle's pending request.
func (d *Dispatcher[H]) QueueDownload(handle H, url string) error {
	if url == "" {
		d.Cancel(handle)
		return nil
	}

	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	prev := d.requests.Register(handle, url)
	if err := d.worker.Enqueue(newDownloadJob(handle, url)); err != nil {
		// An earlier call for the same url already has a job queued; its registration stays.
		if prev != url {
			d.requests.UnregisterIfMatches(handle, url)
		}
		d.metrics.setPending(d.requests.Len())
		return err
	}
	d.metrics.setPending(d.requests.Len())
	return nil
}

// Cancel forgets the handle's pending request. A job already queued still runs but never delivers.
func (d *Dispatcher[H]) Cancel(handle H) {
	d.requests.Register(handle, "")
	d.metrics.setPending(d.requests.Len())
}

// Preload warms the cache for url without any callback.
func (d *Dispatcher[H]) Preload(url string) error {
	if url == "" {
		return nil
	}
	return d.worker.Enqueue(newPreloadJob[H](url))
}

// PreloadAround queues preloads for the neighbours of urls[position] within radius,
// nearest first, skipping empty and already cached urls. It returns how many were queued.
func (d *Dispatcher[H]) PreloadAround(urls []string, position, radius int) int {
	if radius <= 0 || len(urls) == 0 {
		return 0
	}

	queued := 0
	for dist := 1; dist <= radius; dist++ {
		for _, i := range [2]int{position + dist, position - dist} {
			if i < 0 || i >= len(urls) || urls[i] == "" {
				continue
			}
			if _, ok := d.cache.Get(urls[i]); ok {
				continue
			}
			if err := d.Preload(urls[i]); err != nil {
				d.log.Debug("Preload of %s not queued: %v", urls[i], err)
				return queued
			}
			queued++
		}
	}
	return queued
}

// PeekCached checks the cache synchronously. It never queues work.
func (d *Dispatcher[H]) PeekCached(url string) (*domain.Image, bool) {
	img, ok := d.cache.Get(url)
	d.metrics.recordLookup(ok)
	return img, ok
}

// ClearPendingQueue drops queued downloads and keeps preloads.
func (d *Dispatcher[H]) ClearPendingQueue() int {
	n := d.worker.ClearPending()
	if n > 0 {
		d.log.Debug("Cleared %d pending downloads", n)
	}
	return n
}

func (d *Dispatcher[H]) ClearCache() {
	d.cache.Clear()
	d.metrics.setCacheCost(0)
}

func (d *Dispatcher[H]) State() State {
	return d.worker.State()
}

func (d *Dispatcher[H]) Stats() Stats {
	s := Stats{
		State:           d.worker.State().String(),
		Queued:          d.worker.Pending(),
		PendingRequests: d.requests.Len(),
		CacheEntries:    d.cache.Len(),
		CacheCost:       d.cache.Cost(),
		CacheMaxCost:    d.cache.MaxCost(),
	}
	if job, ok := d.worker.Active(); ok {
		s.ActiveURL = job.URL
	}
	return s
}

// deliver hands a finished download to the callback context. Whether the handle
// still wants this url is decided there, right before the listener runs.
func (d *Dispatcher[H]) deliver(job FetchJob[H], img *domain.Image) {
	d.mu.RLock()
	exec := d.executor
	d.mu.RUnlock()

	posted := exec.Post(func() {
		if !d.requests.UnregisterIfMatches(job.Handle, job.URL) {
			d.metrics.recordDelivery(false)
			d.log.Debug("Request for %s superseded before delivery", job.URL)
			return
		}
		d.metrics.recordDelivery(true)
		d.metrics.setPending(d.requests.Len())

		d.mu.RLock()
		l := d.listener
		d.mu.RUnlock()
		if l != nil {
			l(job.Handle, img)
		}
	})
	if !posted {
		d.log.Warn("Callback context gone, dropping result for %s", job.URL)
	}
}
