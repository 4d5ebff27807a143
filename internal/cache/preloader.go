package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"studio/internal/logging"
	"studio/internal/page"
)

// GetSource fetches a single page from the canonical store.
type GetSource interface {
	GetPage(id string) (*page.Meta, error)
}

type preloadEntry struct {
	page       *page.Meta
	insertedAt time.Time
}

// Preloader is the speculative tier: a keyed cache with per-entry TTL,
// global capacity with oldest-insertion eviction, and an in-flight set so
// concurrent preloads of one id trigger exactly one underlying fetch.
type Preloader struct {
	mu       sync.Mutex
	src      GetSource
	ttl      time.Duration
	capacity int
	entries  map[string]*preloadEntry
	inflight map[string]bool
	fetches  int64

	now func() time.Time // test seam
}

// NewPreloader creates the tier over src with the given policy.
func NewPreloader(src GetSource, pol Policy) *Preloader {
	ttl := pol.TTL
	if ttl <= 0 {
		ttl = DefaultPreloadTTL
	}
	capacity := pol.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Preloader{
		src:      src,
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*preloadEntry),
		inflight: make(map[string]bool),
		now:      time.Now,
	}
}

// Get returns the cached page if present and fresh. Expired entries are
// dropped on read.
func (p *Preloader) Get(id string) (*page.Meta, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	if p.now().Sub(e.insertedAt) >= p.ttl {
		delete(p.entries, id)
		return nil, false
	}
	return e.page, true
}

// PreloadPage fetches id into the cache. A fresh cached entry is returned
// without fetching. When a fetch for id is already in flight the call
// returns (nil, nil) rather than double-fetching; the in-flight marker is
// cleared on success, error, and panic alike.
func (p *Preloader) PreloadPage(ctx context.Context, id string) (*page.Meta, error) {
	if id == "" {
		return nil, nil
	}

	p.mu.Lock()
	if e, ok := p.entries[id]; ok && p.now().Sub(e.insertedAt) < p.ttl {
		p.mu.Unlock()
		return e.page, nil
	}
	if p.inflight[id] {
		p.mu.Unlock()
		logging.CacheDebug("preload of %s already in flight", id)
		return nil, nil
	}
	p.inflight[id] = true
	p.fetches++
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, id)
		p.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg, err := p.src.GetPage(id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.entries[id] = &preloadEntry{page: pg, insertedAt: p.now()}
	p.evictLocked()
	p.mu.Unlock()

	logging.CacheDebug("preloaded page %s", id)
	return pg, nil
}

// evictLocked drops oldest-insertion entries until within capacity.
func (p *Preloader) evictLocked() {
	for len(p.entries) > p.capacity {
		oldestID := ""
		var oldestAt time.Time
		for id, e := range p.entries {
			if oldestID == "" || e.insertedAt.Before(oldestAt) {
				oldestID = id
				oldestAt = e.insertedAt
			}
		}
		delete(p.entries, oldestID)
		logging.CacheDebug("evicted preload entry %s", oldestID)
	}
}

// PruneExpired drops every expired entry and returns the count removed.
func (p *Preloader) PruneExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	now := p.now()
	for id, e := range p.entries {
		if now.Sub(e.insertedAt) >= p.ttl {
			delete(p.entries, id)
			n++
		}
	}
	return n
}

// smartPreloadWindow is the distance around the current page considered a
// likely next navigation.
const smartPreloadWindow = 2

// SmartPreload computes preload candidates for the page the user is on:
// pages referenced by nested-container nodes in its tree, plus the ids
// within ±2 of currentID in the supplied ordering. Candidates already
// cached are skipped; fetches are best-effort and errors are swallowed.
func (p *Preloader) SmartPreload(ctx context.Context, currentID string, order []string) {
	candidates := p.candidateSet(currentID, order)
	if len(candidates) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range candidates {
		id := id
		g.Go(func() error {
			if _, err := p.PreloadPage(gctx, id); err != nil {
				logging.CacheDebug("smart preload of %s failed: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Preloader) candidateSet(currentID string, order []string) []string {
	seen := map[string]bool{currentID: true}
	var candidates []string

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		if _, ok := p.Get(id); ok {
			return
		}
		candidates = append(candidates, id)
	}

	if pg, ok := p.Get(currentID); ok && pg != nil {
		for _, id := range page.NestedPageIDs(pg.Root) {
			add(id)
		}
	} else if pg, err := p.src.GetPage(currentID); err == nil && pg != nil {
		for _, id := range page.NestedPageIDs(pg.Root) {
			add(id)
		}
	}

	for i, id := range order {
		if id != currentID {
			continue
		}
		lo := i - smartPreloadWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + smartPreloadWindow
		if hi > len(order)-1 {
			hi = len(order) - 1
		}
		for j := lo; j <= hi; j++ {
			add(order[j])
		}
		break
	}

	return candidates
}

// ScanAndPreloadNested preloads every page referenced by nested-container
// nodes in pg's tree. This is the explicit entry point navigation uses
// after loading a page; errors are swallowed per candidate.
func (p *Preloader) ScanAndPreloadNested(ctx context.Context, pg *page.Meta) {
	if pg == nil {
		return
	}
	ids := page.NestedPageIDs(pg.Root)
	if len(ids) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range ids {
		id := id
		if _, ok := p.Get(id); ok {
			continue
		}
		g.Go(func() error {
			if _, err := p.PreloadPage(gctx, id); err != nil {
				logging.CacheDebug("nested preload of %s failed: %v", id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// PreloaderStats describes the tier state.
type PreloaderStats struct {
	Entries  int
	Inflight int
	Fetches  int64
}

// Stats returns current counters.
func (p *Preloader) Stats() PreloaderStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PreloaderStats{
		Entries:  len(p.entries),
		Inflight: len(p.inflight),
		Fetches:  p.fetches,
	}
}
