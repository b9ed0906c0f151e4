package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/datallboy/gothumb/internal/cache"
	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/infra/logger"
)

type State int

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// resultFunc receives every image a download job produced, on the worker goroutine.
type resultFunc[H comparable] func(job FetchJob[H], img *domain.Image)

// Worker owns the job queue and the image cache and processes jobs one at a time,
// strictly in submission order.
type Worker[H comparable] struct {
	mu         sync.Mutex
	queue      []FetchJob[H]
	state      State
	activeJob  *FetchJob[H]
	queueLimit int
	maxPixels  int64

	cache    *cache.ImageCache
	fetcher  domain.ImageFetcher
	requests *RequestTable[H]
	onResult resultFunc[H]
	log      *logger.Logger
	metrics  *Metrics

	newJobChan chan struct{}
	stopChan   chan struct{}
	done       chan struct{}
}

type workerConfig[H comparable] struct {
	cache      *cache.ImageCache
	fetcher    domain.ImageFetcher
	requests   *RequestTable[H]
	onResult   resultFunc[H]
	log        *logger.Logger
	metrics    *Metrics
	queueLimit int
	maxPixels  int64
}

func newWorker[H comparable](cfg workerConfig[H]) *Worker[H] {
	if cfg.log == nil {
		cfg.log = logger.Nop()
	}
	return &Worker[H]{
		cache:      cfg.cache,
		fetcher:    cfg.fetcher,
		requests:   cfg.requests,
		onResult:   cfg.onResult,
		log:        cfg.log,
		metrics:    cfg.metrics,
		queueLimit: cfg.queueLimit,
		maxPixels:  cfg.maxPixels,
		newJobChan: make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Enqueue appends a job and wakes the loop. It never blocks on the worker.
func (w *Worker[H]) Enqueue(job FetchJob[H]) error {
	w.mu.Lock()
	if w.state == StateDraining || w.state == StateStopped {
		w.mu.Unlock()
		w.metrics.recordJob(job.Kind, "rejected")
		return domain.ErrWorkerStopped
	}
	if w.queueLimit > 0 && len(w.queue) >= w.queueLimit {
		w.mu.Unlock()
		w.metrics.recordJob(job.Kind, "rejected")
		return domain.ErrQueueFull
	}
	w.queue = append(w.queue, job)
	depth := len(w.queue)
	w.mu.Unlock()

	w.metrics.setQueueDepth(depth)

	// Signal the loop that there is work to do
	select {
	case w.newJobChan <- struct{}{}:
	default:
		// Signal already pending, no need to block
	}
	return nil
}

// Start launches the single worker goroutine. Jobs queued before Start are kept.
// Cancelling ctx ends the loop after the current job.
func (w *Worker[H]) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateCreated:
	case StateRunning:
		return domain.ErrAlreadyStarted
	default:
		return domain.ErrWorkerStopped
	}

	w.state = StateRunning
	go w.loop(ctx)
	return nil
}

func (w *Worker[H]) loop(ctx context.Context) {
	defer w.finish()

	for {
		next, ok := w.next()
		if !ok {
			select {
			case <-w.newJobChan:
				continue
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}

		w.process(ctx, next)

		w.mu.Lock()
		w.activeJob = nil
		draining := w.state == StateDraining
		w.mu.Unlock()

		if draining || ctx.Err() != nil {
			return
		}
	}
}

// next pops the head of the queue and marks it active.
func (w *Worker[H]) next() (FetchJob[H], bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateRunning || len(w.queue) == 0 {
		return FetchJob[H]{}, false
	}

	job := w.queue[0]
	w.queue[0] = FetchJob[H]{}
	w.queue = w.queue[1:]
	w.activeJob = &job
	w.metrics.setQueueDepth(len(w.queue))
	return job, true
}

// finish moves the worker to Stopped and releases the cache.
func (w *Worker[H]) finish() {
	w.mu.Lock()
	discarded := w.dropQueueLocked()
	w.state = StateStopped
	w.mu.Unlock()

	if discarded > 0 {
		w.log.Debug("Discarded %d queued jobs on shutdown", discarded)
	}

	w.cache.Clear()
	w.metrics.setCacheCost(0)
	close(w.done)
}

// dropQueueLocked discards every queued job. Caller holds w.mu.
func (w *Worker[H]) dropQueueLocked() int {
	n := len(w.queue)
	for _, job := range w.queue {
		w.metrics.recordJob(job.Kind, "discarded")
	}
	w.queue = nil
	w.metrics.setQueueDepth(0)
	return n
}

// Stop rejects new jobs, discards queued ones without callbacks, and waits for the
// executing job to finish. It returns ctx.Err() if ctx ends first; the worker still
// reaches Stopped once that job returns.
func (w *Worker[H]) Stop(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateCreated:
		w.dropQueueLocked()
		w.state = StateStopped
		w.mu.Unlock()
		w.cache.Clear()
		close(w.done)
		return nil
	case StateRunning:
		w.state = StateDraining
		discarded := w.dropQueueLocked()
		close(w.stopChan)
		w.mu.Unlock()
		w.log.Info("Fetch worker draining, discarded %d queued jobs", discarded)
	default:
		// Already draining or stopped: just wait
		w.mu.Unlock()
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearPending drops queued download jobs and leaves preloads in place.
// Registrations that still point at a dropped job are removed too.
func (w *Worker[H]) ClearPending() int {
	w.mu.Lock()
	kept := w.queue[:0]
	var dropped []FetchJob[H]
	for _, job := range w.queue {
		if job.Kind == KindDownload {
			dropped = append(dropped, job)
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(w.queue); i++ {
		w.queue[i] = FetchJob[H]{}
	}
	w.queue = kept
	depth := len(w.queue)
	w.mu.Unlock()

	for _, job := range dropped {
		w.requests.UnregisterIfMatches(job.Handle, job.URL)
		w.metrics.recordJob(job.Kind, "discarded")
	}
	w.metrics.setQueueDepth(depth)
	w.metrics.setPending(w.requests.Len())
	return len(dropped)
}

func (w *Worker[H]) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Pending returns the number of queued, not yet started jobs.
func (w *Worker[H]) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Active returns a copy of the executing job, if any.
func (w *Worker[H]) Active() (FetchJob[H], bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.activeJob == nil {
		return FetchJob[H]{}, false
	}
	return *w.activeJob, true
}

func (w *Worker[H]) process(ctx context.Context, job FetchJob[H]) {
	if job.Kind == KindDownload {
		w.log.Debug("Got a request for URL: %s (job %s)", job.URL, job.ID)
	}

	img := w.obtain(ctx, job.URL)
	w.metrics.recordJob(job.Kind, "processed")

	if img == nil || job.Kind != KindDownload {
		return
	}

	// Cheap pre-check so superseded handles don't cost a trip through the callback context
	if current, ok := w.requests.Lookup(job.Handle); !ok || current != job.URL {
		w.log.Debug("Dropping stale result for %s (job %s)", job.URL, job.ID)
		w.metrics.recordDelivery(false)
		return
	}

	if w.onResult != nil {
		w.onResult(job, img)
	}
}

// obtain returns the image from cache, or fetches, decodes and caches it.
// Failures are logged and yield nil; there is no retry.
func (w *Worker[H]) obtain(ctx context.Context, url string) *domain.Image {
	if img, ok := w.cache.Get(url); ok {
		w.metrics.recordLookup(true)
		return img
	}
	w.metrics.recordLookup(false)

	start := time.Now()
	data, err := w.fetcher.Fetch(ctx, url)
	var img *domain.Image
	if err == nil {
		img, err = domain.DecodeLimited(url, data, w.maxPixels)
	}
	w.metrics.recordFetch(time.Since(start).Seconds(), err)

	if err != nil {
		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			err = &domain.FetchError{URL: url, Err: err}
		}
		w.log.Warn("Error downloading image: %v", err)
		return nil
	}

	w.cache.Put(url, img)
	w.metrics.setCacheCost(w.cache.Cost())
	w.log.Debug("Downloaded & cached image: %s (%dx%d %s)", url, img.Width, img.Height, img.Format)
	return img
}
