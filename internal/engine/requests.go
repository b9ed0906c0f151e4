package engine

import (
	"sync"
	"sync/atomic"
)

// RequestTable maps a requester handle to the url it currently wants.
// Registering a new url for a handle silently invalidates any in-flight job for the old one.
type RequestTable[H comparable] struct {
	m   sync.Map // H -> string
	len atomic.Int64
}

func NewRequestTable[H comparable]() *RequestTable[H] {
	return &RequestTable[H]{}
}

// Register sets the pending url for handle and returns the url it replaced, if any.
// An empty url cancels the pending request.
func (t *RequestTable[H]) Register(handle H, url string) (prev string) {
	if url == "" {
		if v, loaded := t.m.LoadAndDelete(handle); loaded {
			t.len.Add(-1)
			return v.(string)
		}
		return ""
	}
	v, loaded := t.m.Swap(handle, url)
	if !loaded {
		t.len.Add(1)
		return ""
	}
	return v.(string)
}

func (t *RequestTable[H]) Lookup(handle H) (string, bool) {
	v, ok := t.m.Load(handle)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// UnregisterIfMatches removes the entry only when it still points at url.
// A false return means the request was superseded or cancelled.
func (t *RequestTable[H]) UnregisterIfMatches(handle H, url string) bool {
	if t.m.CompareAndDelete(handle, url) {
		t.len.Add(-1)
		return true
	}
	return false
}

// Len is the number of handles with a pending request.
func (t *RequestTable[H]) Len() int {
	return int(t.len.Load())
}
