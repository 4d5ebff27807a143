// Package navigation implements the bounded back/forward history stack.
// The manager feeds itself from page-navigate bus events, so recording is a
// side effect of navigation everywhere in the app, and publishes a state
// snapshot after every mutation so navigation controls can re-render.
package navigation

import (
	"sync"
	"time"

	"studio/internal/bus"
	"studio/internal/logging"
)

// Item is one history entry.
type Item struct {
	PageID    string    `json:"pageId"`
	PageName  string    `json:"pageName,omitempty"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the snapshot published on navigation-history-updated.
// Invariant: -1 <= CurrentIndex < len(History).
type State struct {
	History      []Item `json:"history"`
	CurrentIndex int    `json:"currentIndex"`
	CanGoBack    bool   `json:"canGoBack"`
	CanGoForward bool   `json:"canGoForward"`
}

// DefaultMaxSize bounds the history stack.
const DefaultMaxSize = 10

// HistoryManager is the back/forward state machine.
type HistoryManager struct {
	mu      sync.Mutex
	history []Item
	current int
	maxSize int
	bus     *bus.Bus
	unsub   func()
}

// NewHistoryManager creates a manager bound to b and subscribes it to the
// page-navigate topic. maxSize < 1 falls back to DefaultMaxSize.
func NewHistoryManager(b *bus.Bus, maxSize int) *HistoryManager {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}
	m := &HistoryManager{
		current: -1,
		maxSize: maxSize,
		bus:     b,
	}
	m.unsub = b.Subscribe(bus.TopicPageNavigate, m.onPageNavigate)
	return m
}

// Close detaches the manager from the bus.
func (m *HistoryManager) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// onPageNavigate records navigations published on the bus. Navigations
// replayed from the history itself carry fromHistory and are skipped so
// back/forward never double-record.
func (m *HistoryManager) onPageNavigate(payload any) {
	p, ok := payload.(map[string]any)
	if !ok {
		return
	}
	if from, _ := p["fromHistory"].(bool); from {
		return
	}
	pageID, _ := p["pageId"].(string)
	if pageID == "" {
		return
	}
	name, _ := p["pageName"].(string)
	url, _ := p["url"].(string)
	title, _ := p["title"].(string)
	m.AddToHistory(Item{PageID: pageID, PageName: name, URL: url, Title: title})
}

// AddToHistory appends a navigation. When the cursor is not at the tail
// the forward branch is discarded first (browser redo-invalidation).
// Consecutive navigations to the same page are a silent no-op. The stack
// is bounded by dropping from the head.
func (m *HistoryManager) AddToHistory(item Item) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	m.mu.Lock()
	if m.current < len(m.history)-1 {
		m.history = m.history[:m.current+1]
	}
	if m.current >= 0 && m.current < len(m.history) && m.history[m.current].PageID == item.PageID {
		m.mu.Unlock()
		logging.NavDebug("dedup: already on page %s", item.PageID)
		return
	}

	m.history = append(m.history, item)
	m.current = len(m.history) - 1

	if len(m.history) > m.maxSize {
		drop := len(m.history) - m.maxSize
		m.history = m.history[drop:]
		m.current -= drop
		if m.current < 0 {
			m.current = 0
		}
	}
	snapshot := m.stateLocked()
	m.mu.Unlock()

	logging.NavDebug("recorded %s (len=%d index=%d)", item.PageID, len(snapshot.History), snapshot.CurrentIndex)
	m.publish(snapshot)
}

// GoBack moves the cursor back one entry. Returns nil at the boundary.
func (m *HistoryManager) GoBack() *Item {
	m.mu.Lock()
	if m.current <= 0 {
		m.mu.Unlock()
		logging.NavDebug("goBack at history start")
		return nil
	}
	m.current--
	item := m.history[m.current]
	snapshot := m.stateLocked()
	m.mu.Unlock()

	m.publish(snapshot)
	return &item
}

// GoForward moves the cursor forward one entry. Returns nil at the boundary.
func (m *HistoryManager) GoForward() *Item {
	m.mu.Lock()
	if m.current >= len(m.history)-1 {
		m.mu.Unlock()
		logging.NavDebug("goForward at history end")
		return nil
	}
	m.current++
	item := m.history[m.current]
	snapshot := m.stateLocked()
	m.mu.Unlock()

	m.publish(snapshot)
	return &item
}

// CanGoBack reports whether GoBack would succeed.
func (m *HistoryManager) CanGoBack() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current > 0
}

// CanGoForward reports whether GoForward would succeed.
func (m *HistoryManager) CanGoForward() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current < len(m.history)-1
}

// CurrentItem returns the entry under the cursor, or nil.
func (m *HistoryManager) CurrentItem() *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current < 0 || m.current >= len(m.history) {
		return nil
	}
	item := m.history[m.current]
	return &item
}

// ClearHistory empties the stack.
func (m *HistoryManager) ClearHistory() {
	m.mu.Lock()
	m.history = nil
	m.current = -1
	snapshot := m.stateLocked()
	m.mu.Unlock()

	m.publish(snapshot)
}

// SetMaxHistorySize rebounds the stack, dropping oldest entries when the
// current length exceeds the new bound. n is clamped to at least 1.
func (m *HistoryManager) SetMaxHistorySize(n int) {
	if n < 1 {
		logging.NavDebug("clamping max history size %d to 1", n)
		n = 1
	}

	m.mu.Lock()
	m.maxSize = n
	trimmed := false
	if len(m.history) > n {
		drop := len(m.history) - n
		m.history = m.history[drop:]
		m.current -= drop
		if m.current < 0 {
			m.current = 0
		}
		trimmed = true
	}
	snapshot := m.stateLocked()
	m.mu.Unlock()

	if trimmed {
		m.publish(snapshot)
	}
}

// State returns a snapshot of the current stack.
func (m *HistoryManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// stateLocked builds a snapshot. Must hold m.mu.
func (m *HistoryManager) stateLocked() State {
	history := make([]Item, len(m.history))
	copy(history, m.history)
	return State{
		History:      history,
		CurrentIndex: m.current,
		CanGoBack:    m.current > 0,
		CanGoForward: m.current < len(m.history)-1,
	}
}

// publish emits the snapshot. Called outside the lock so subscribers may
// call back into the manager.
func (m *HistoryManager) publish(s State) {
	m.bus.Publish(bus.TopicHistoryUpdated, s)
}
