package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/page"
)

// fakeMutable records SavePages calls.
type fakeMutable struct {
	mu      sync.Mutex
	pages   []*page.Meta
	saves   int
	lastSet []*page.Meta
}

func (f *fakeMutable) ListPages() ([]*page.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*page.Meta, len(f.pages))
	copy(out, f.pages)
	return out, nil
}

func (f *fakeMutable) SavePages(pages []*page.Meta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.lastSet = pages
	return nil
}

func (f *fakeMutable) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeMutable) lastSaved() []*page.Meta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSet
}

func TestInitializeLoadsList(t *testing.T) {
	src := &fakeMutable{pages: somePages("a", "b")}
	c := NewPageCache(src, Policy{})
	require.NoError(t, c.Initialize())

	pg, ok := c.GetPage("a")
	require.True(t, ok)
	assert.Equal(t, "a", pg.ID)
	_, ok = c.GetPage("zzz")
	assert.False(t, ok)
}

func TestDebouncedFlushCoalesces(t *testing.T) {
	src := &fakeMutable{}
	c := NewPageCache(src, Policy{Debounce: 20 * time.Millisecond})
	require.NoError(t, c.Initialize())

	// Burst of mutations inside one debounce window.
	c.UpsertPage(&page.Meta{ID: "a", Name: "v1"})
	c.UpsertPage(&page.Meta{ID: "a", Name: "v2"})
	c.UpsertPage(&page.Meta{ID: "b", Name: "B"})
	c.DeletePage("b")
	c.UpsertPage(&page.Meta{ID: "a", Name: "final"})

	assert.Equal(t, 0, src.saveCount(), "no write inside the debounce window")

	// Wait out the window.
	deadline := time.Now().Add(time.Second)
	for src.saveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	require.Equal(t, 1, src.saveCount(), "burst must coalesce into one write")
	saved := src.lastSaved()
	require.Len(t, saved, 1)
	assert.Equal(t, "final", saved[0].Name)
}

func TestFlushNoopWhenClean(t *testing.T) {
	src := &fakeMutable{pages: somePages("a")}
	c := NewPageCache(src, Policy{})
	require.NoError(t, c.Initialize())

	require.NoError(t, c.Flush())
	assert.Equal(t, 0, src.saveCount(), "clean cache must not write")
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	src := &fakeMutable{}
	c := NewPageCache(src, Policy{Debounce: time.Hour}) // debounce never fires
	require.NoError(t, c.Initialize())

	c.UpsertPage(&page.Meta{ID: "a", Name: "A"})
	require.NoError(t, c.Close())

	assert.Equal(t, 1, src.saveCount())
	require.Len(t, src.lastSaved(), 1)
}

func TestRecentsBoundedMRU(t *testing.T) {
	src := &fakeMutable{}
	c := NewPageCache(src, Policy{Capacity: 3})
	require.NoError(t, c.Initialize())

	for _, id := range []string{"a", "b", "c", "d"} {
		c.Touch(id)
	}
	assert.Equal(t, []string{"d", "c", "b"}, c.Recents())

	c.Touch("b") // move to front
	assert.Equal(t, []string{"b", "d", "c"}, c.Recents())
}
