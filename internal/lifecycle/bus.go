package lifecycle

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event is a module lifecycle transition.
type Event int

const (
	// EventLoad is fired after a module is loaded.
	EventLoad Event = iota + 1
	// EventActivate is fired after a module is activated.
	EventActivate
	// EventFreeze is fired after a module is frozen.
	EventFreeze
	// EventUnload is fired when a module is being unloaded.
	EventUnload
)

// String returns the upper-case event name.
func (e Event) String() string {
	switch e {
	case EventLoad:
		return "LOAD"
	case EventActivate:
		return "ACTIVATE"
	case EventFreeze:
		return "FROZEN"
	case EventUnload:
		return "UNLOAD"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Listener receives lifecycle notifications.
// Returning false asks the bus to stop delivering to this listener.
type Listener interface {
	OnLifecycle(moduleID string, event Event) (keep bool)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(moduleID string, event Event) bool

// OnLifecycle calls f(moduleID, event).
func (f ListenerFunc) OnLifecycle(moduleID string, event Event) bool {
	return f(moduleID, event)
}

// Bus delivers lifecycle notifications synchronously.
//
// Thread-safety: Subscribe, cancel and Fire are safe for concurrent
// use. Fire iterates a snapshot, so listeners may subscribe or unsubscribe
// from inside a callback.
type Bus struct {
	mu        sync.Mutex
	listeners []subscription
	nextID    uint64
	logger    *slog.Logger
}

type subscription struct {
	id       uint64
	listener Listener
}

// NewBus creates an empty bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a listener and returns a cancel function.
// Calling cancel more than once is harmless.
func (b *Bus) Subscribe(listener Listener) (cancel func()) {
	if b == nil || listener == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, listener: listener})
	b.mu.Unlock()

	return func() {
		b.remove(id)
	}
}

// Fire delivers event for moduleID to every listener in subscription order.
// A listener that panics is logged and kept; one that returns false is
// removed.
func (b *Bus) Fire(moduleID string, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	snapshot := make([]subscription, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	b.logger.Debug("lifecycle event",
		"module", moduleID,
		"event", event.String(),
		"listeners", len(snapshot),
	)

	for _, sub := range snapshot {
		if !b.deliver(sub, moduleID, event) {
			b.remove(sub.id)
		}
	}
}

// Len returns the number of subscribed listeners.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *Bus) deliver(sub subscription, moduleID string, event Event) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("lifecycle listener panicked",
				"module", moduleID,
				"event", event.String(),
				"panic", fmt.Sprint(r),
			)
			keep = true
		}
	}()
	return sub.listener.OnLifecycle(moduleID, event)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}
