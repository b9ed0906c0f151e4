package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gothumb/internal/cache"
	"github.com/datallboy/gothumb/internal/domain"
)

func newTestWorker(t *testing.T, f *fakeFetcher, onResult resultFunc[int]) (*Worker[int], *RequestTable[int]) {
	t.Helper()
	requests := NewRequestTable[int]()
	w := newWorker(workerConfig[int]{
		cache:    cache.New(cache.Options{MaxCost: 8, Cost: cache.CountCost}),
		fetcher:  f,
		requests: requests,
		onResult: onResult,
	})
	return w, requests
}

func TestWorker_ContextCancelEndsLoop(t *testing.T) {
	f := newFakeFetcher(t)
	gate := f.gate("a.jpg")
	w, _ := newTestWorker(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Enqueue(newPreloadJob[int]("a.jpg")))
	require.NoError(t, w.Enqueue(newPreloadJob[int]("b.jpg")))
	f.waitStarted(t, "a.jpg")

	cancel()
	require.Eventually(t, func() bool { return w.State() == StateStopped }, waitFor, tick)

	assert.Equal(t, []string{"a.jpg"}, f.Calls())
	assert.Equal(t, 0, w.Pending())
	assert.ErrorIs(t, w.Enqueue(newPreloadJob[int]("c.jpg")), domain.ErrWorkerStopped)
	close(gate)
}

func TestWorker_StaleDownloadSkipsHook(t *testing.T) {
	f := newFakeFetcher(t)
	var hooked []string
	w, requests := newTestWorker(t, f, func(job FetchJob[int], _ *domain.Image) {
		hooked = append(hooked, job.URL)
	})

	requests.Register(1, "new.jpg")
	require.NoError(t, w.Enqueue(newDownloadJob(1, "old.jpg")))
	require.NoError(t, w.Enqueue(newDownloadJob(1, "new.jpg")))
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, waitFor, tick)
	require.NoError(t, w.Stop(context.Background()))

	assert.Equal(t, []string{"new.jpg"}, hooked)
}

func TestWorker_ClearPendingOnlyDropsDownloads(t *testing.T) {
	f := newFakeFetcher(t)
	w, requests := newTestWorker(t, f, nil)

	requests.Register(1, "a.jpg")
	requests.Register(2, "b.jpg")
	require.NoError(t, w.Enqueue(newDownloadJob(1, "a.jpg")))
	require.NoError(t, w.Enqueue(newPreloadJob[int]("p.jpg")))
	require.NoError(t, w.Enqueue(newDownloadJob(2, "b.jpg")))

	assert.Equal(t, 2, w.ClearPending())
	assert.Equal(t, 1, w.Pending())
	assert.Equal(t, 0, requests.Len())
	assert.Equal(t, 0, w.ClearPending())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "created", StateCreated.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "download", KindDownload.String())
	assert.Equal(t, "preload", KindPreload.String())
}
