// Package bus implements the synchronous publish/subscribe primitive that
// ties the studio subsystems together. Delivery is in-process and in the
// publishing goroutine: Publish returns only after every handler registered
// at publish time has run.
package bus

import (
	"sync"
	"sync/atomic"

	"studio/internal/logging"
)

// Handler receives a topic payload. Payloads are plain values, usually
// map[string]any for the wire-contract topics.
type Handler func(payload any)

type subscription struct {
	fn Handler
}

// Bus routes payloads from publishers to topic subscribers.
// Handlers for one topic run in subscription (insertion) order.
type Bus struct {
	mu        sync.RWMutex
	topics    map[string][]*subscription
	published atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]*subscription)}
}

// Subscribe registers h for topic and returns an unsubscribe function.
// The returned function is idempotent; calling it twice is a no-op.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	sub := &subscription{fn: h}

	b.mu.Lock()
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	logging.BusDebug("subscribed to %q", topic)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, sub) })
	}
}

func (b *Bus) remove(topic string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	for i, s := range subs {
		if s == sub {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// Publish delivers payload to every handler currently registered for topic,
// synchronously and in subscription order. Handlers registered during
// delivery do not receive the in-flight event. A panicking handler is
// logged and skipped; it never aborts delivery to the rest.
func (b *Bus) Publish(topic string, payload any) {
	b.published.Add(1)

	b.mu.RLock()
	subs := make([]*subscription, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.invoke(topic, sub, payload)
	}
}

func (b *Bus) invoke(topic string, sub *subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logging.BusError("handler panic on topic %q: %v", topic, r)
		}
	}()
	sub.fn(payload)
}

// SubscriberCount returns the number of handlers registered for topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Stats holds bus counters.
type Stats struct {
	Topics         int
	Subscribers    int
	TotalPublished uint64
}

// BusStats returns current counters.
func (b *Bus) BusStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, subs := range b.topics {
		total += len(subs)
	}
	return Stats{
		Topics:         len(b.topics),
		Subscribers:    total,
		TotalPublished: b.published.Load(),
	}
}
