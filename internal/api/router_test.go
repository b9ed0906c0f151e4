package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/gothumb/internal/api/controllers"
	"github.com/datallboy/gothumb/internal/app"
	"github.com/datallboy/gothumb/internal/domain"
	"github.com/datallboy/gothumb/internal/infra/config"
	"github.com/datallboy/gothumb/internal/infra/logger"
)

type testServer struct {
	e     *echo.Echo
	app   *app.Context
	mu    sync.Mutex
	calls []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	data := buf.Bytes()

	cfg := &config.Config{
		Cache:  config.CacheConfig{MaxEntries: 8},
		Worker: config.WorkerConfig{PreloadRadius: 1},
	}

	ts := &testServer{e: echo.New()}
	ts.app = app.NewContext(cfg, logger.Nop())
	ts.app.Fetcher = domain.FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		ts.mu.Lock()
		ts.calls = append(ts.calls, url)
		ts.mu.Unlock()
		return data, nil
	})
	require.NoError(t, ts.app.Build(context.Background()))
	require.NoError(t, ts.app.Thumbnails.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ts.app.Close(ctx)
	})

	RegisterRoutes(ts.e, ts.app)
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) fetched() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.calls...)
}

func TestSlots_BindDeliverAndRead(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/slots/0", `{"url":"https://img.test/a.png"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var bind controllers.BindResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bind))
	assert.True(t, bind.Queued)
	assert.False(t, bind.Cached)

	require.Eventually(t, func() bool {
		return ts.do(http.MethodGet, "/slots/0", "").Code == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	rec = ts.do(http.MethodGet, "/slots/0", "")
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Header().Get("X-Delivery-Id"))

	rec = ts.do(http.MethodGet, "/slots/0?meta=1", "")
	var slot controllers.SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slot))
	assert.True(t, slot.Ready)
	assert.Equal(t, "https://img.test/a.png", slot.URL)

	// Rebinding to a cached url answers immediately without another fetch
	rec = ts.do(http.MethodPut, "/slots/1", `{"url":"https://img.test/a.png"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bind))
	assert.True(t, bind.Cached)
	assert.Equal(t, []string{"https://img.test/a.png"}, ts.fetched())
}

func TestSlots_UnknownAndRelease(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/slots/9", "").Code)

	require.Equal(t, http.StatusAccepted, ts.do(http.MethodPut, "/slots/9", `{"url":"https://img.test/x.png"}`).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/slots/9", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/slots/9", "").Code)

	// Binding to an empty url also releases
	require.Equal(t, http.StatusAccepted, ts.do(http.MethodPut, "/slots/9", `{"url":"https://img.test/y.png"}`).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPut, "/slots/9", `{"url":""}`).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/slots/9", "").Code)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPut, "/slots/9", `{"url":`).Code)
}

func TestSlots_NeighborsArePreloaded(t *testing.T) {
	ts := newTestServer(t)

	body := `{"url":"n1","neighbors":["n0","n1","n2"],"position":1}`
	rec := ts.do(http.MethodPut, "/slots/list-1", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var bind controllers.BindResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bind))
	assert.Equal(t, 2, bind.Preloaded)

	require.Eventually(t, func() bool { return len(ts.fetched()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"n1", "n2", "n0"}, ts.fetched())
}

func TestCacheAndQueueEndpoints(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/cache", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/cache?url=p.png", "").Code)

	rec := ts.do(http.MethodPost, "/preload", `{"urls":["p.png",""]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var pre controllers.PreloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pre))
	assert.Equal(t, controllers.PreloadResponse{Queued: 1, Skipped: 1}, pre)

	require.Eventually(t, func() bool {
		return ts.do(http.MethodGet, "/cache?url=p.png", "").Code == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	var entry controllers.CacheEntry
	require.NoError(t, json.Unmarshal(ts.do(http.MethodGet, "/cache?url=p.png", "").Body.Bytes(), &entry))
	assert.Equal(t, 8, entry.Width)
	assert.Equal(t, "png", entry.Format)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/cache", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/cache?url=p.png", "").Code)

	rec = ts.do(http.MethodDelete, "/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared controllers.ClearQueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cleared))
	assert.GreaterOrEqual(t, cleared.Dropped, 0)
}

func TestStatsAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st controllers.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "running", st.Engine.State)
	assert.Equal(t, int64(8), st.Engine.CacheMaxCost)
	assert.Equal(t, "0 / 8 entries", st.CacheUsage)
	assert.Nil(t, st.Store)

	rec = ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueueErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.app.Thumbnails.Stop(context.Background()))

	rec := ts.do(http.MethodPut, "/slots/0", `{"url":"late.png"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// A refused bind leaves no pending slot behind
	rec = ts.do(http.MethodGet, "/slots/0", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 0, ts.app.Slots.Len())
}
