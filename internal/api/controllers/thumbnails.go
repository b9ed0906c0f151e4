package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v5"

	"github.com/datallboy/gothumb/internal/app"
	"github.com/datallboy/gothumb/internal/domain"
)

type ThumbnailController struct {
	App *app.Context
}

// BindSlot points a slot at a url: cache peek first, queue only on a miss.
func (ctrl *ThumbnailController) BindSlot(c *echo.Context) error {
	slot := c.Param("slot")

	var req BindRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	d := ctrl.App.Thumbnails
	if req.URL == "" {
		d.Cancel(slot)
		ctrl.App.Slots.Release(slot)
		return c.NoContent(http.StatusNoContent)
	}

	resp := BindResponse{Slot: slot, URL: req.URL}
	if img, ok := d.PeekCached(req.URL); ok {
		// Hit: show it now and drop whatever the slot was waiting for
		d.Cancel(slot)
		ctrl.App.Slots.Bind(slot, req.URL, img)
		resp.Cached = true
	} else {
		// Bound before queueing so a fast delivery finds the slot
		ctrl.App.Slots.Bind(slot, req.URL, nil)
		if err := d.QueueDownload(slot, req.URL); err != nil {
			ctrl.App.Slots.ReleaseIfBound(slot, req.URL)
			return queueError(err)
		}
		resp.Queued = true
	}

	if len(req.Neighbors) > 0 {
		resp.Preloaded = d.PreloadAround(req.Neighbors, req.Position, ctrl.App.Config.Worker.PreloadRadius)
	}

	status := http.StatusAccepted
	if resp.Cached {
		status = http.StatusOK
	}
	return c.JSON(status, resp)
}

func (ctrl *ThumbnailController) ReleaseSlot(c *echo.Context) error {
	slot := c.Param("slot")
	ctrl.App.Thumbnails.Cancel(slot)
	ctrl.App.Slots.Release(slot)
	return c.NoContent(http.StatusNoContent)
}

// GetSlot serves the delivered image, 204 while it is still pending.
func (ctrl *ThumbnailController) GetSlot(c *echo.Context) error {
	slot := c.Param("slot")

	s, ok := ctrl.App.Slots.Get(slot)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Slot not bound")
	}
	if !s.Ready() {
		return c.NoContent(http.StatusNoContent)
	}

	if c.QueryParam("meta") != "" {
		return c.JSON(http.StatusOK, SlotResponse{
			Slot:        slot,
			URL:         s.URL,
			Ready:       true,
			DeliveryID:  s.DeliveryID,
			DeliveredAt: s.DeliveredAt,
		})
	}

	c.Response().Header().Set("X-Delivery-Id", s.DeliveryID)
	return c.Blob(http.StatusOK, s.Image.ContentType(), s.Image.Data)
}

func (ctrl *ThumbnailController) Preload(c *echo.Context) error {
	var req PreloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	resp := PreloadResponse{}
	for _, url := range req.URLs {
		if url == "" {
			resp.Skipped++
			continue
		}
		if err := ctrl.App.Thumbnails.Preload(url); err != nil {
			if errors.Is(err, domain.ErrQueueFull) {
				resp.Skipped += len(req.URLs) - resp.Queued - resp.Skipped
				break
			}
			return queueError(err)
		}
		resp.Queued++
	}
	return c.JSON(http.StatusAccepted, resp)
}

// PeekCache answers from the in-memory cache only; it never queues a fetch.
func (ctrl *ThumbnailController) PeekCache(c *echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing url")
	}

	img, ok := ctrl.App.Thumbnails.PeekCached(url)
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, CacheEntry{
		URL:    img.URL,
		Format: img.Format,
		Width:  img.Width,
		Height: img.Height,
		Bytes:  img.ByteSize(),
		Size:   humanize.IBytes(uint64(img.ByteSize())),
	})
}

func (ctrl *ThumbnailController) ClearCache(c *echo.Context) error {
	ctrl.App.Thumbnails.ClearCache()
	return c.NoContent(http.StatusNoContent)
}

func (ctrl *ThumbnailController) ClearQueue(c *echo.Context) error {
	n := ctrl.App.Thumbnails.ClearPendingQueue()
	return c.JSON(http.StatusOK, ClearQueueResponse{Dropped: n})
}

func (ctrl *ThumbnailController) Stats(c *echo.Context) error {
	st := ctrl.App.Thumbnails.Stats()
	resp := StatsResponse{
		Engine: st,
		Slots:  ctrl.App.Slots.Len(),
	}

	if ctrl.App.Config.Cache.MaxEntries > 0 {
		resp.CacheUsage = fmt.Sprintf("%d / %d entries", st.CacheCost, st.CacheMaxCost)
	} else {
		resp.CacheUsage = fmt.Sprintf("%s / %s", humanize.IBytes(uint64(st.CacheCost)), humanize.IBytes(uint64(st.CacheMaxCost)))
	}

	if ctrl.App.Store != nil {
		ss, err := ctrl.App.Store.Stats(c.Request().Context())
		if err != nil {
			ctrl.App.Logger.Warn("Failed to read store stats: %v", err)
		} else {
			resp.Store = &ss
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func queueError(err error) error {
	switch {
	case errors.Is(err, domain.ErrQueueFull):
		return echo.NewHTTPError(http.StatusTooManyRequests, "Fetch queue is full")
	case errors.Is(err, domain.ErrWorkerStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Thumbnail worker stopped")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
