// Package maintenance runs periodic housekeeping over the cache tiers:
// expired preload entries are pruned, pending page writes are flushed,
// and recently-viewed pages are re-warmed.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"studio/internal/cache"
	"studio/internal/logging"
)

// DefaultSchedule runs the sweep once a minute.
const DefaultSchedule = "@every 1m"

// Janitor owns the cron runner.
type Janitor struct {
	schedule  string
	pages     *cache.PageCache
	preloader *cache.Preloader
	cron      *cron.Cron
}

// New creates a janitor over the write-back cache and the preloader.
func New(schedule string, pages *cache.PageCache, preloader *cache.Preloader) *Janitor {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Janitor{
		schedule:  schedule,
		pages:     pages,
		preloader: preloader,
	}
}

// Start schedules the sweep and begins running it.
func (j *Janitor) Start() error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(j.schedule, j.Sweep); err != nil {
		return err
	}
	j.cron.Start()
	logging.Maintenance("janitor scheduled: %s", j.schedule)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// Sweep runs one housekeeping pass. Also callable directly for a manual
// flush.
func (j *Janitor) Sweep() {
	start := time.Now()

	pruned := j.preloader.PruneExpired()
	if err := j.pages.Flush(); err != nil {
		logging.Maintenance("flush failed: %v", err)
	}

	// Re-warm what the user touched recently; best effort.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, id := range j.pages.Recents() {
		if _, ok := j.preloader.Get(id); ok {
			continue
		}
		if _, err := j.preloader.PreloadPage(ctx, id); err != nil {
			logging.Maintenance("re-warm %s failed: %v", id, err)
		}
	}

	ps := j.preloader.Stats()
	cs := j.pages.Stats()
	logging.Maintenance("sweep done in %s: pruned=%d preloaded=%d cached=%d flushes=%d",
		time.Since(start).Round(time.Millisecond), pruned, ps.Entries, cs.Pages, cs.Flushes)
}
