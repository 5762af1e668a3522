package testutil

import (
	"sync"

	"github.com/roach88/watchcore/internal/ir"
)

// EventRecorder is an ir.EventListener that keeps every event it receives.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type EventRecorder struct {
	// Err is returned from every OnEvent call.
	Err error

	mu     sync.Mutex
	events []ir.Event
}

// OnEvent records ev.
func (r *EventRecorder) OnEvent(ev ir.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
