package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"studio/internal/page"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGetter is a GetSource whose fetches can be gated for concurrency
// tests.
type fakeGetter struct {
	mu      sync.Mutex
	pages   map[string]*page.Meta
	fetches int
	gate    chan struct{} // when non-nil, GetPage blocks until closed
	err     error
}

func newFakeGetter(ids ...string) *fakeGetter {
	f := &fakeGetter{pages: make(map[string]*page.Meta)}
	for _, id := range ids {
		f.pages[id] = &page.Meta{ID: id, Name: "page " + id}
	}
	return f
}

func (f *fakeGetter) GetPage(id string) (*page.Meta, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.gate
	err := f.err
	pg := f.pages[id]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if pg == nil {
		return nil, fmt.Errorf("no such page %q", id)
	}
	return pg, nil
}

func (f *fakeGetter) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func TestPreloadPageCachesResult(t *testing.T) {
	src := newFakeGetter("a")
	p := NewPreloader(src, Policy{})

	pg, err := p.PreloadPage(context.Background(), "a")
	if err != nil || pg == nil {
		t.Fatalf("preload: pg=%v err=%v", pg, err)
	}

	// Second call is a cache hit, no new fetch.
	if _, err := p.PreloadPage(context.Background(), "a"); err != nil {
		t.Fatalf("preload hit: %v", err)
	}
	if src.fetchCount() != 1 {
		t.Fatalf("expected 1 fetch, got %d", src.fetchCount())
	}
	if _, ok := p.Get("a"); !ok {
		t.Fatalf("expected cached entry")
	}
}

func TestConcurrentPreloadSingleFetch(t *testing.T) {
	src := newFakeGetter("a")
	src.gate = make(chan struct{})
	p := NewPreloader(src, Policy{})

	done := make(chan *page.Meta, 1)
	go func() {
		pg, _ := p.PreloadPage(context.Background(), "a")
		done <- pg
	}()

	// Wait until the first call is in flight.
	deadline := time.Now().Add(time.Second)
	for p.Stats().Inflight == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.Stats().Inflight != 1 {
		t.Fatalf("first preload never entered flight")
	}

	// Second concurrent call must bail out with nil, not double-fetch.
	pg, err := p.PreloadPage(context.Background(), "a")
	if err != nil {
		t.Fatalf("concurrent preload errored: %v", err)
	}
	if pg != nil {
		t.Fatalf("concurrent preload should return nil while in flight")
	}

	close(src.gate)
	if first := <-done; first == nil {
		t.Fatalf("winning preload should return the page")
	}
	if src.fetchCount() != 1 {
		t.Fatalf("expected exactly 1 underlying fetch, got %d", src.fetchCount())
	}
}

func TestInflightClearedOnError(t *testing.T) {
	src := newFakeGetter()
	src.err = errors.New("fetch failed")
	p := NewPreloader(src, Policy{})

	if _, err := p.PreloadPage(context.Background(), "a"); err == nil {
		t.Fatalf("expected fetch error")
	}
	if p.Stats().Inflight != 0 {
		t.Fatalf("in-flight set leaked after error")
	}

	// The key must be preloadable again.
	src.mu.Lock()
	src.err = nil
	src.pages["a"] = &page.Meta{ID: "a"}
	src.mu.Unlock()

	if pg, err := p.PreloadPage(context.Background(), "a"); err != nil || pg == nil {
		t.Fatalf("retry after failure: pg=%v err=%v", pg, err)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	ids := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		ids = append(ids, fmt.Sprintf("p%d", i))
	}
	src := newFakeGetter(ids...)
	p := NewPreloader(src, Policy{Capacity: 5})

	clock := time.Now()
	p.now = func() time.Time { return clock }

	for _, id := range ids {
		clock = clock.Add(time.Second) // distinct insertion timestamps
		if _, err := p.PreloadPage(context.Background(), id); err != nil {
			t.Fatalf("preload %s: %v", id, err)
		}
	}

	if got := p.Stats().Entries; got != 5 {
		t.Fatalf("expected 5 entries after eviction, got %d", got)
	}
	// The 2 oldest are gone, the rest remain.
	for _, id := range ids[:2] {
		if _, ok := p.Get(id); ok {
			t.Fatalf("expected %s evicted", id)
		}
	}
	for _, id := range ids[2:] {
		if _, ok := p.Get(id); !ok {
			t.Fatalf("expected %s retained", id)
		}
	}
}

func TestEntryExpiry(t *testing.T) {
	src := newFakeGetter("a")
	p := NewPreloader(src, Policy{TTL: time.Minute})

	clock := time.Now()
	p.now = func() time.Time { return clock }

	if _, err := p.PreloadPage(context.Background(), "a"); err != nil {
		t.Fatalf("preload: %v", err)
	}
	clock = clock.Add(time.Minute + time.Second)

	if _, ok := p.Get("a"); ok {
		t.Fatalf("expired entry served")
	}
}

func TestPruneExpired(t *testing.T) {
	src := newFakeGetter("a", "b")
	p := NewPreloader(src, Policy{TTL: time.Minute})

	clock := time.Now()
	p.now = func() time.Time { return clock }

	p.PreloadPage(context.Background(), "a")
	clock = clock.Add(2 * time.Minute)
	p.PreloadPage(context.Background(), "b")

	if n := p.PruneExpired(); n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	if _, ok := p.Get("b"); !ok {
		t.Fatalf("fresh entry pruned")
	}
}

func TestSmartPreloadWindowAndNested(t *testing.T) {
	// current page c references nested page "x"; order is a..e.
	src := newFakeGetter("a", "b", "c", "d", "e", "x")
	src.mu.Lock()
	src.pages["c"].Root = &page.Node{
		ID: "r", Type: "container",
		Children: []*page.Node{
			{ID: "n", Type: "nested-page", Props: map[string]any{"pageId": "x"}},
		},
	}
	src.mu.Unlock()

	p := NewPreloader(src, Policy{})
	p.SmartPreload(context.Background(), "c", []string{"a", "b", "c", "d", "e"})

	var cached []string
	for _, id := range []string{"a", "b", "c", "d", "e", "x"} {
		if _, ok := p.Get(id); ok {
			cached = append(cached, id)
		}
	}
	sort.Strings(cached)
	// ±2 window around c is a,b,d,e plus nested x. c itself may or may
	// not be cached depending on whether the scan fetch stored it; accept
	// either way.
	for _, want := range []string{"a", "b", "d", "e", "x"} {
		found := false
		for _, id := range cached {
			if id == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s preloaded, cached=%v", want, cached)
		}
	}
}

func TestSmartPreloadSwallowsErrors(t *testing.T) {
	src := newFakeGetter("a") // b and x missing: fetches will fail
	p := NewPreloader(src, Policy{})

	// Must not panic or return an error surface.
	p.SmartPreload(context.Background(), "a", []string{"a", "b"})
	if _, ok := p.Get("a"); !ok {
		t.Fatalf("reachable candidate not preloaded")
	}
}

func TestScanAndPreloadNested(t *testing.T) {
	src := newFakeGetter("child1", "child2")
	p := NewPreloader(src, Policy{})

	pg := &page.Meta{ID: "parent", Root: &page.Node{
		ID: "r", Type: "container",
		Children: []*page.Node{
			{ID: "n1", Type: "nested-page", Props: map[string]any{"pageId": "child1"}},
			{ID: "n2", Type: "page-ref", Props: map[string]any{"pageId": "child2"}},
		},
	}}

	p.ScanAndPreloadNested(context.Background(), pg)

	for _, id := range []string{"child1", "child2"} {
		if _, ok := p.Get(id); !ok {
			t.Fatalf("nested page %s not preloaded", id)
		}
	}
}
