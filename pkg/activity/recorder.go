package activity

import (
	"context"
	"sync"
)

// Recorder keeps every event it receives. It backs run summaries and test
// assertions.
type Recorder struct {
	// Err is returned from every Notify call.
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify records the event and returns r.Err.
func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, NormalizeEvent(event))
	return r.Err
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count reports how many events with verb were recorded, over all phases
// when phase is empty.
func (r *Recorder) Count(verb, phase string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Verb == verb && (phase == "" || e.Phase == phase) {
			n++
		}
	}
	return n
}

// Paths lists the record paths of events with verb, in arrival order.
func (r *Recorder) Paths(verb string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var paths []string
	for _, e := range r.events {
		if e.Verb == verb {
			paths = append(paths, e.Path)
		}
	}
	return paths
}
