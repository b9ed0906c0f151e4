package engine

import (
	"time"

	"github.com/segmentio/ksuid"
)

type JobKind int

const (
	KindDownload JobKind = iota
	KindPreload
)

func (k JobKind) String() string {
	switch k {
	case KindDownload:
		return "download"
	case KindPreload:
		return "preload"
	default:
		return "unknown"
	}
}

// FetchJob is one unit of work for the worker. Handle is only meaningful for downloads.
type FetchJob[H comparable] struct {
	ID       string
	Kind     JobKind
	Handle   H
	URL      string
	QueuedAt time.Time
}

func newDownloadJob[H comparable](handle H, url string) FetchJob[H] {
	return FetchJob[H]{
		ID:       ksuid.New().String(),
		Kind:     KindDownload,
		Handle:   handle,
		URL:      url,
		QueuedAt: time.Now(),
	}
}

func newPreloadJob[H comparable](url string) FetchJob[H] {
	return FetchJob[H]{
		ID:       ksuid.New().String(),
		Kind:     KindPreload,
		URL:      url,
		QueuedAt: time.Now(),
	}
}
