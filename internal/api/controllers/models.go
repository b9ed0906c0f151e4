package controllers

import (
	"time"

	"github.com/datallboy/gothumb/internal/engine"
	"github.com/datallboy/gothumb/internal/store"
)

// -- SLOTS (PUT /slots/:slot) ---
type BindRequest struct {
	URL string `json:"url"`
	// Neighbors is the list the slot belongs to; Position is the slot's index in it
	Neighbors []string `json:"neighbors,omitempty"`
	Position  int      `json:"position"`
}

type BindResponse struct {
	Slot      string `json:"slot"`
	URL       string `json:"url"`
	Cached    bool   `json:"cached"`
	Queued    bool   `json:"queued"`
	Preloaded int    `json:"preloaded"`
}

type SlotResponse struct {
	Slot        string    `json:"slot"`
	URL         string    `json:"url"`
	Ready       bool      `json:"ready"`
	DeliveryID  string    `json:"delivery_id,omitempty"`
	DeliveredAt time.Time `json:"delivered_at,omitzero"`
}

// -- PRELOAD (POST /preload) ---
type PreloadRequest struct {
	URLs []string `json:"urls"`
}

type PreloadResponse struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// -- CACHE (GET /cache) ---
type CacheEntry struct {
	URL    string `json:"url"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
	Size   string `json:"size"`
}

type ClearQueueResponse struct {
	Dropped int `json:"dropped"`
}

// -- STATS (GET /stats) ---
type StatsResponse struct {
	Engine engine.Stats `json:"engine"`
	Slots  int          `json:"slots"`
	Store  *store.Stats `json:"store,omitempty"`
	// Human readable cache usage, e.g. "3.1 MB / 34 MB"
	CacheUsage string `json:"cache_usage"`
}
