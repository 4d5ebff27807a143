package cache

import (
	"sort"
	"sync"

	"studio/internal/logging"
	"studio/internal/page"
)

// MutableSource is the storage surface the write-back tier needs.
type MutableSource interface {
	ListPages() ([]*page.Meta, error)
	SavePages([]*page.Meta) error
}

// PageCache is the eager write-back tier: the full list is loaded at
// Initialize, mutations hit the in-memory index immediately, and a
// debounced flush coalesces bursts of edits into a single storage write.
// It also tracks a bounded MRU list of recently-accessed ids for
// speculative preloading.
type PageCache struct {
	mu          sync.Mutex
	src         MutableSource
	pages       map[string]*page.Meta
	dirty       bool
	deb         *Debouncer
	recents     []string
	recentLimit int
	flushes     int64
	initialized bool
}

// NewPageCache creates the tier over src with the given policy.
func NewPageCache(src MutableSource, pol Policy) *PageCache {
	debounce := pol.Debounce
	if debounce <= 0 {
		debounce = DefaultFlushDebounce
	}
	limit := pol.Capacity
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &PageCache{
		src:         src,
		pages:       make(map[string]*page.Meta),
		deb:         NewDebouncer(debounce),
		recentLimit: limit,
	}
}

// Initialize eagerly loads the page list into memory.
func (c *PageCache) Initialize() error {
	pages, err := c.src.ListPages()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = make(map[string]*page.Meta, len(pages))
	for _, pg := range pages {
		c.pages[pg.ID] = pg
	}
	c.initialized = true
	logging.Cache("page cache initialized with %d pages", len(pages))
	return nil
}

// GetPage returns the cached page, if present.
func (c *PageCache) GetPage(id string) (*page.Meta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pg, ok := c.pages[id]
	if ok {
		c.touchLocked(id)
	}
	return pg, ok
}

// UpsertPage stores the page in memory and schedules a debounced flush.
func (c *PageCache) UpsertPage(pg *page.Meta) {
	c.mu.Lock()
	c.pages[pg.ID] = pg
	c.dirty = true
	c.touchLocked(pg.ID)
	c.mu.Unlock()

	c.deb.Debounce(c.flushDebounced)
}

// DeletePage removes the page from memory and schedules a debounced flush.
func (c *PageCache) DeletePage(id string) {
	c.mu.Lock()
	delete(c.pages, id)
	c.dirty = true
	c.mu.Unlock()

	c.deb.Debounce(c.flushDebounced)
}

// Touch records id as recently accessed.
func (c *PageCache) Touch(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touchLocked(id)
}

// touchLocked moves id to the front of the MRU list, trimming the tail.
func (c *PageCache) touchLocked(id string) {
	for i, r := range c.recents {
		if r == id {
			c.recents = append(c.recents[:i], c.recents[i+1:]...)
			break
		}
	}
	c.recents = append([]string{id}, c.recents...)
	if len(c.recents) > c.recentLimit {
		c.recents = c.recents[:c.recentLimit]
	}
}

// Recents returns the MRU id list, most recent first.
func (c *PageCache) Recents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.recents))
	copy(out, c.recents)
	return out
}

func (c *PageCache) flushDebounced() {
	if err := c.Flush(); err != nil {
		logging.CacheWarn("debounced flush failed: %v", err)
	}
}

// Flush writes the in-memory list to storage if anything changed since the
// last write. Multiple mutations inside one debounce window land here as a
// single SavePages call reflecting final state.
func (c *PageCache) Flush() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	pages := make([]*page.Meta, 0, len(c.pages))
	for _, pg := range c.pages {
		pages = append(pages, pg)
	}
	// Deterministic write order.
	sort.Slice(pages, func(i, j int) bool {
		if !pages[i].CreatedAt.Equal(pages[j].CreatedAt) {
			return pages[i].CreatedAt.Before(pages[j].CreatedAt)
		}
		return pages[i].ID < pages[j].ID
	})
	c.dirty = false
	c.flushes++
	c.mu.Unlock()

	if err := c.src.SavePages(pages); err != nil {
		c.mu.Lock()
		c.dirty = true // retry on the next flush
		c.mu.Unlock()
		return err
	}
	logging.CacheDebug("flushed %d pages to storage", len(pages))
	return nil
}

// Close cancels any pending debounce and flushes outstanding writes.
func (c *PageCache) Close() error {
	c.deb.Cancel()
	return c.Flush()
}

// PageCacheStats describes the tier state.
type PageCacheStats struct {
	Pages   int
	Recents int
	Dirty   bool
	Flushes int64
}

// Stats returns current counters.
func (c *PageCache) Stats() PageCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PageCacheStats{
		Pages:   len(c.pages),
		Recents: len(c.recents),
		Dirty:   c.dirty,
		Flushes: c.flushes,
	}
}
