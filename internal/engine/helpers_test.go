package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datallboy/gothumb/internal/domain"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeFetcher serves a small png for every url. Urls with a gate block until it is opened.
type fakeFetcher struct {
	data []byte

	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	fail  map[string]error

	started chan string
}

func newFakeFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{
		data:    pngBytes(t),
		gates:   make(map[string]chan struct{}),
		fail:    make(map[string]error),
		started: make(chan string, 64),
	}
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[url] = ch
	return ch
}

func (f *fakeFetcher) failWith(url string, err error) {
	f.mu.Lock()
	f.fail[url] = err
	f.mu.Unlock()
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	gate := f.gates[url]
	err := f.fail[url]
	f.mu.Unlock()

	f.started <- url

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return f.data, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) waitStarted(t *testing.T, url string) {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case got := <-f.started:
			if got == url {
				return
			}
		case <-timeout:
			t.Fatalf("fetch of %s never started", url)
		}
	}
}

var errBoom = errors.New("boom")

// manualExecutor holds posted callbacks until the test runs them.
type manualExecutor struct {
	mu  sync.Mutex
	fns []func()
}

func (e *manualExecutor) Post(fn func()) bool {
	e.mu.Lock()
	e.fns = append(e.fns, fn)
	e.mu.Unlock()
	return true
}

func (e *manualExecutor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fns)
}

func (e *manualExecutor) RunAll() {
	e.mu.Lock()
	fns := e.fns
	e.fns = nil
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type delivery struct {
	handle int
	url    string
}

// recorder is a Listener that keeps every delivered (handle, url) pair.
type recorder struct {
	mu  sync.Mutex
	got []delivery
}

func (r *recorder) listen(handle int, img *domain.Image) {
	r.mu.Lock()
	r.got = append(r.got, delivery{handle: handle, url: img.URL})
	r.mu.Unlock()
}

func (r *recorder) Deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}
