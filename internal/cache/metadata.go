package cache

import (
	"errors"
	"sync"
	"time"

	"studio/internal/logging"
	"studio/internal/page"
)

// ErrPageNotFound is returned by reads for ids absent from the page list.
var ErrPageNotFound = errors.New("cache: page not found")

// ListSource supplies the canonical page list.
type ListSource interface {
	ListPages() ([]*page.Meta, error)
}

// MetadataManager is the whole-list TTL tier. Any read that finds the
// snapshot stale reloads the entire list synchronously and rebuilds the id
// index; there is no background refresh. Reads are pure: nothing here
// schedules preloads as a side effect.
type MetadataManager struct {
	mu       sync.Mutex
	src      ListSource
	ttl      time.Duration
	pages    []*page.Meta
	index    map[string]*page.Meta
	lastLoad time.Time
	loaded   bool
	loads    int64

	now func() time.Time // test seam
}

// NewMetadataManager creates the tier over src with the given policy.
func NewMetadataManager(src ListSource, pol Policy) *MetadataManager {
	ttl := pol.TTL
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	return &MetadataManager{
		src: src,
		ttl: ttl,
		now: time.Now,
	}
}

// GetPage returns the page with the given id, reloading the list first if
// the snapshot is stale. Returns ErrPageNotFound for unknown ids.
func (m *MetadataManager) GetPage(id string) (*page.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureFreshLocked(); err != nil {
		return nil, err
	}
	pg, ok := m.index[id]
	if !ok {
		return nil, ErrPageNotFound
	}
	return pg, nil
}

// GetAllPages returns the current snapshot, reloading first if stale.
func (m *MetadataManager) GetAllPages() ([]*page.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureFreshLocked(); err != nil {
		return nil, err
	}
	out := make([]*page.Meta, len(m.pages))
	copy(out, m.pages)
	return out, nil
}

// PageIDs returns the ids of the current snapshot in list order.
func (m *MetadataManager) PageIDs() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ensureFreshLocked(); err != nil {
		return nil, err
	}
	ids := make([]string, len(m.pages))
	for i, pg := range m.pages {
		ids[i] = pg.ID
	}
	return ids, nil
}

// Invalidate forces the next read to reload regardless of TTL.
func (m *MetadataManager) Invalidate() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
	logging.CacheDebug("metadata cache invalidated")
}

func (m *MetadataManager) isValidLocked() bool {
	return m.loaded && m.now().Sub(m.lastLoad) < m.ttl
}

func (m *MetadataManager) ensureFreshLocked() error {
	if m.isValidLocked() {
		return nil
	}
	pages, err := m.src.ListPages()
	if err != nil {
		return err
	}
	m.pages = pages
	m.index = make(map[string]*page.Meta, len(pages))
	for _, pg := range pages {
		m.index[pg.ID] = pg
	}
	m.lastLoad = m.now()
	m.loaded = true
	m.loads++
	logging.CacheDebug("metadata reloaded: %d pages", len(pages))
	return nil
}

// MetadataStats describes the tier state.
type MetadataStats struct {
	Pages    int
	Loads    int64
	LastLoad time.Time
}

// Stats returns current counters.
func (m *MetadataManager) Stats() MetadataStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetadataStats{Pages: len(m.pages), Loads: m.loads, LastLoad: m.lastLoad}
}
