package bus

import "sync"

// Recorder is a test-friendly subscriber that records every payload it
// receives. Wire it with bus.Subscribe(topic, rec.Handle).
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Recorded holds one captured delivery.
type Recorded struct {
	Payload any
}

// Handle is the bus Handler to subscribe with.
func (r *Recorder) Handle(payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Payload: payload})
}

// Events returns a copy of the captured deliveries.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of captured deliveries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Reset discards captured deliveries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
