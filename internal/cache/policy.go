package cache

import "time"

// Policy parameterizes a cache tier. All three tiers read from the same
// struct so collapsing them into one configurable cache later is a wiring
// change, not a rewrite.
type Policy struct {
	TTL      time.Duration // freshness window; zero means the tier default
	Capacity int           // max entries; zero means the tier default
	Debounce time.Duration // write coalescing window; zero means the tier default
}

// Tier defaults.
const (
	DefaultListTTL       = 5 * time.Second
	DefaultPreloadTTL    = 5 * time.Minute
	DefaultCapacity      = 20
	DefaultFlushDebounce = 100 * time.Millisecond
	DefaultRecentLimit   = 10
)
