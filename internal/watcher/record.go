package watcher

import (
	"sync"

	"github.com/roach88/watchcore/internal/ir"
)

// HookRecord binds one watch to its owning module, predicate, listener and
// enabled event kinds. Everything but the affected counters is immutable.
//
// HookRecord implements ir.Hook; the rewrite service reports every type it
// rewrites through Affect.
type HookRecord struct {
	watchID        int64
	moduleID       string
	predicate      ir.Predicate
	listener       ir.EventListener
	kinds          ir.EventKinds
	listenerHandle int64

	mu       sync.Mutex
	affected map[ir.TypeKey]int // rewritten method count per type
}

func newHookRecord(watchID int64, moduleID string, predicate ir.Predicate, listener ir.EventListener, kinds ir.EventKinds) *HookRecord {
	return &HookRecord{
		watchID:        watchID,
		moduleID:       moduleID,
		predicate:      predicate,
		listener:       listener,
		kinds:          kinds,
		listenerHandle: listenerHandles.Next(),
		affected:       make(map[ir.TypeKey]int),
	}
}

// WatchID returns the id issued by the registry's sequencer.
func (h *HookRecord) WatchID() int64 { return h.watchID }

// ModuleID returns the owning module.
func (h *HookRecord) ModuleID() string { return h.moduleID }

// Predicate returns the caller's type predicate.
func (h *HookRecord) Predicate() ir.Predicate { return h.predicate }

// Listener returns the caller's event listener.
func (h *HookRecord) Listener() ir.EventListener { return h.listener }

// EventKinds returns the enabled event kinds.
func (h *HookRecord) EventKinds() ir.EventKinds { return h.kinds }

// ListenerHandle correlates the record with the event activation service.
func (h *HookRecord) ListenerHandle() int64 { return h.listenerHandle }

// Affect records that t was rewritten with methods hooked methods. Types
// are counted per loader. Counters only grow: a type already counted keeps
// its larger method count.
func (h *HookRecord) Affect(t ir.LoadedType, methods int) {
	if methods < 0 {
		methods = 0
	}
	key := t.Key()
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.affected[key]; !ok || methods > current {
		h.affected[key] = methods
	}
}

// Counts returns the affected type and method counts.
func (h *HookRecord) Counts() (types, methods int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.affected {
		methods += m
	}
	return len(h.affected), methods
}

// AffectedTypeCount returns how many types the hook has rewritten.
func (h *HookRecord) AffectedTypeCount() int {
	types, _ := h.Counts()
	return types
}

// AffectedMethodCount returns how many methods the hook has rewritten.
func (h *HookRecord) AffectedMethodCount() int {
	_, methods := h.Counts()
	return methods
}

var _ ir.Hook = (*HookRecord)(nil)
