package app

import (
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/gothumb/internal/domain"
)

// Slot is one display position bound to an image url.
type Slot struct {
	URL         string
	Image       *domain.Image
	DeliveryID  string
	DeliveredAt time.Time
}

// Ready reports whether the bound url's image has arrived.
func (s Slot) Ready() bool {
	return s.Image != nil && s.Image.URL == s.URL
}

// SlotBoard is the consumer side of the dispatcher: it remembers what each slot
// shows and receives deliveries on the dispatcher's callback context.
type SlotBoard struct {
	mu    sync.RWMutex
	slots map[string]Slot
}

func NewSlotBoard() *SlotBoard {
	return &SlotBoard{slots: make(map[string]Slot)}
}

// Bind points slot at url. A ready image for url (a cache hit) may be set directly.
func (b *SlotBoard) Bind(slot, url string, ready *domain.Image) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Slot{URL: url}
	if ready != nil {
		s.Image = ready
		s.DeliveryID = ksuid.New().String()
		s.DeliveredAt = time.Now()
	}
	b.slots[slot] = s
}

// Deliver is the dispatcher listener.
func (b *SlotBoard) Deliver(slot string, img *domain.Image) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.slots[slot]
	if !ok || s.URL != img.URL {
		// Slot was released or rebound outside the dispatcher
		return
	}
	s.Image = img
	s.DeliveryID = ksuid.New().String()
	s.DeliveredAt = time.Now()
	b.slots[slot] = s
}

func (b *SlotBoard) Release(slot string) {
	b.mu.Lock()
	delete(b.slots, slot)
	b.mu.Unlock()
}

// ReleaseIfBound drops slot only while it still points at url, so a failed bind
// cannot clear a newer binding made by another request.
func (b *SlotBoard) ReleaseIfBound(slot, url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.slots[slot]; !ok || s.URL != url {
		return false
	}
	delete(b.slots, slot)
	return true
}

func (b *SlotBoard) Get(slot string) (Slot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.slots[slot]
	return s, ok
}

func (b *SlotBoard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots)
}
