package cache

import (
	"container/list"
	"sync"

	"github.com/datallboy/gothumb/internal/domain"
)

// CostFunc reports how much of the cache budget an image consumes.
type CostFunc func(img *domain.Image) int64

// CountCost charges one unit per entry, turning the ceiling into a max entry count.
func CountCost(*domain.Image) int64 { return 1 }

// ByteCost charges the decoded footprint of the image.
func ByteCost(img *domain.Image) int64 { return img.ByteSize() }

type Options struct {
	// MaxCost is the ceiling for the summed cost of all entries. Must be > 0.
	MaxCost int64

	// Cost defaults to ByteCost
	Cost CostFunc

	// OnEvict is called (under the cache lock) for every entry dropped to make room.
	// It is not called by Clear.
	OnEvict func(url string, cost int64)
}

type entry struct {
	url  string
	img  *domain.Image
	cost int64
}

// ImageCache maps url -> decoded image with least-recently-used eviction.
// Newest entries are at the front of the list.
type ImageCache struct {
	mu      sync.Mutex
	ll      *list.List
	entries map[string]*list.Element
	sum     int64

	maxCost int64
	cost    CostFunc
	onEvict func(string, int64)
}

func New(opts Options) *ImageCache {
	if opts.Cost == nil {
		opts.Cost = ByteCost
	}
	if opts.MaxCost <= 0 {
		opts.MaxCost = 1
	}

	return &ImageCache{
		ll:      list.New(),
		entries: make(map[string]*list.Element),
		maxCost: opts.MaxCost,
		cost:    opts.Cost,
		onEvict: opts.OnEvict,
	}
}

// Get returns the cached image and marks it as most recently used.
func (c *ImageCache) Get(url string) (*domain.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[url]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(e)
	return e.Value.(*entry).img, true
}

// Put inserts or replaces the image for url, then trims the cache back under MaxCost.
// An image costing more than MaxCost on its own is evicted immediately.
func (c *ImageCache) Put(url string, img *domain.Image) {
	if img == nil {
		return
	}
	cost := c.cost(img)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[url]; ok {
		old := e.Value.(*entry)
		c.sum += cost - old.cost
		old.img = img
		old.cost = cost
		c.ll.MoveToFront(e)
	} else {
		c.entries[url] = c.ll.PushFront(&entry{url: url, img: img, cost: cost})
		c.sum += cost
	}

	c.trim()
}

// trim evicts from the back until the budget holds. Caller holds c.mu.
func (c *ImageCache) trim() {
	for c.sum > c.maxCost {
		e := c.ll.Back()
		if e == nil {
			return
		}
		old := e.Value.(*entry)
		c.ll.Remove(e)
		delete(c.entries, old.url)
		c.sum -= old.cost

		if c.onEvict != nil {
			c.onEvict(old.url, old.cost)
		}
	}
}

// Clear drops every entry.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.entries = make(map[string]*list.Element)
	c.sum = 0
}

func (c *ImageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Cost returns the summed cost of all entries.
func (c *ImageCache) Cost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

func (c *ImageCache) MaxCost() int64 { return c.maxCost }

// Keys returns the cached urls from most to least recently used.
func (c *ImageCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, c.ll.Len())
	for e := c.ll.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*entry).url)
	}
	return out
}
