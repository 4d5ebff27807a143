package handler

import (
	"sync"

	"studio/internal/bus"
)

// ElementRegistry stands in for the rendered element tree: a concurrent
// map of element id to displayed text. setTextById and handler scripts
// mutate it; the renderer subscribes to node-props-changed to apply the
// mutation visually.
type ElementRegistry struct {
	mu   sync.RWMutex
	text map[string]string
	bus  *bus.Bus
}

// NewElementRegistry creates an empty registry publishing changes on b.
func NewElementRegistry(b *bus.Bus) *ElementRegistry {
	return &ElementRegistry{
		text: make(map[string]string),
		bus:  b,
	}
}

// SetText stores the text for an element and announces the change.
func (r *ElementRegistry) SetText(id, text string) {
	r.mu.Lock()
	r.text[id] = text
	r.mu.Unlock()

	if r.bus != nil {
		r.bus.Publish(bus.TopicNodePropsChanged, map[string]any{
			"id":   id,
			"text": text,
		})
	}
}

// GetText returns the current text for an element.
func (r *ElementRegistry) GetText(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.text[id]
}

// Len returns the number of tracked elements.
func (r *ElementRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.text)
}
