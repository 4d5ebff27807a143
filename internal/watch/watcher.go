// Package watch detects external writes to the page database. Another
// process editing the store (a sync tool, a manual sqlite session) shows
// up as filesystem events; the watcher debounces them into one metadata
// invalidation plus a page-refresh broadcast.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"studio/internal/bus"
	"studio/internal/cache"
	"studio/internal/logging"
)

// DefaultDebounce coalesces the event bursts SQLite produces per commit.
const DefaultDebounce = 500 * time.Millisecond

// Watcher follows one database file.
type Watcher struct {
	dbPath   string
	bus      *bus.Bus
	meta     *cache.MetadataManager
	debounce time.Duration

	fsw  *fsnotify.Watcher
	deb  *cache.Debouncer
	done chan struct{}
	once sync.Once
}

// New creates a watcher for the database at dbPath.
func New(dbPath string, b *bus.Bus, meta *cache.MetadataManager, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dbPath:   dbPath,
		bus:      b,
		meta:     meta,
		debounce: debounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching. The directory is watched rather than the file
// because SQLite swaps wal/journal siblings around the db itself.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.dbPath)); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.deb = cache.NewDebouncer(w.debounce)

	go w.loop()
	logging.Watch("watching %s", w.dbPath)
	return nil
}

// Stop halts the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.fsw != nil {
			w.fsw.Close()
			<-w.done
			w.deb.Cancel()
		}
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			logging.Watch("external change: %s %s", ev.Op, filepath.Base(ev.Name))
			w.deb.Debounce(w.refresh)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Watch("watch error: %v", err)
		}
	}
}

// relevant keeps only writes touching the database and its sidecars.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	dbBase := filepath.Base(w.dbPath)
	return base == dbBase ||
		base == dbBase+"-wal" ||
		base == dbBase+"-journal" ||
		strings.HasPrefix(base, dbBase+"-")
}

// refresh drops the metadata snapshot and tells renderers to re-read.
func (w *Watcher) refresh() {
	w.meta.Invalidate()
	w.bus.Publish(bus.TopicPageRefresh, map[string]any{"reason": "external-change"})
	logging.Watch("metadata invalidated after external change")
}
