package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"studio/internal/page"
)

// fakeList is a ListSource that counts loads.
type fakeList struct {
	mu    sync.Mutex
	pages []*page.Meta
	loads int
	err   error
}

func (f *fakeList) ListPages() ([]*page.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*page.Meta, len(f.pages))
	copy(out, f.pages)
	return out, nil
}

func (f *fakeList) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func somePages(ids ...string) []*page.Meta {
	out := make([]*page.Meta, len(ids))
	for i, id := range ids {
		out[i] = &page.Meta{ID: id, Name: "page " + id}
	}
	return out
}

func TestGetPageWithinTTLDoesNotReload(t *testing.T) {
	src := &fakeList{pages: somePages("a", "b")}
	m := NewMetadataManager(src, Policy{TTL: 5 * time.Second})

	clock := time.Now()
	m.now = func() time.Time { return clock }

	if _, err := m.GetPage("a"); err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	clock = clock.Add(3 * time.Second)
	if _, err := m.GetPage("b"); err != nil {
		t.Fatalf("GetPage: %v", err)
	}

	if src.loadCount() != 1 {
		t.Fatalf("expected 1 load within TTL, got %d", src.loadCount())
	}
}

func TestGetPageAfterTTLReloads(t *testing.T) {
	src := &fakeList{pages: somePages("a")}
	m := NewMetadataManager(src, Policy{TTL: 5 * time.Second})

	clock := time.Now()
	m.now = func() time.Time { return clock }

	if _, err := m.GetPage("a"); err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	clock = clock.Add(5*time.Second + time.Millisecond)
	if _, err := m.GetPage("a"); err != nil {
		t.Fatalf("GetPage: %v", err)
	}

	if src.loadCount() != 2 {
		t.Fatalf("expected reload after TTL, got %d loads", src.loadCount())
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	src := &fakeList{pages: somePages("a")}
	m := NewMetadataManager(src, Policy{TTL: time.Hour})

	if _, err := m.GetAllPages(); err != nil {
		t.Fatalf("GetAllPages: %v", err)
	}
	m.Invalidate()
	if _, err := m.GetAllPages(); err != nil {
		t.Fatalf("GetAllPages: %v", err)
	}

	if src.loadCount() != 2 {
		t.Fatalf("expected reload after Invalidate, got %d loads", src.loadCount())
	}
}

func TestGetPageUnknownID(t *testing.T) {
	src := &fakeList{pages: somePages("a")}
	m := NewMetadataManager(src, Policy{})

	_, err := m.GetPage("missing")
	if !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
}

func TestReloadSeesNewPages(t *testing.T) {
	src := &fakeList{pages: somePages("a")}
	m := NewMetadataManager(src, Policy{TTL: time.Hour})

	if _, err := m.GetPage("a"); err != nil {
		t.Fatalf("GetPage: %v", err)
	}

	src.mu.Lock()
	src.pages = somePages("a", "b")
	src.mu.Unlock()

	// Still cached: b invisible.
	if _, err := m.GetPage("b"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected stale miss for b, got %v", err)
	}

	m.Invalidate()
	if _, err := m.GetPage("b"); err != nil {
		t.Fatalf("expected b after invalidate: %v", err)
	}

	ids, err := m.PageIDs()
	if err != nil || len(ids) != 2 {
		t.Fatalf("unexpected ids %v err %v", ids, err)
	}
}

func TestSourceErrorPropagates(t *testing.T) {
	src := &fakeList{err: errors.New("disk gone")}
	m := NewMetadataManager(src, Policy{})

	if _, err := m.GetAllPages(); err == nil {
		t.Fatalf("expected source error")
	}
}
