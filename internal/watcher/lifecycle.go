package watcher

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/watchcore/internal/lifecycle"
)

// LifecycleBridge deletes every watch of a registry when its module
// unloads, then unsubscribes itself. ACTIVATE and FROZEN for the module
// switch its listeners on and off.
//
// The bridge seals the registry before deleting, so a Watch racing with
// the unload either lands in the snapshot and is deleted, or fails with
// ErrRegistryClosed. No watch can outlive its module.
type LifecycleBridge struct {
	registry *Registry
	retired  atomic.Bool
	logger   *slog.Logger

	mu     sync.Mutex
	cancel func()
}

// NewLifecycleBridge creates an unattached bridge for registry.
func NewLifecycleBridge(registry *Registry) *LifecycleBridge {
	return &LifecycleBridge{
		registry: registry,
		logger:   registry.logger,
	}
}

// AttachLifecycle subscribes a bridge for registry to bus.
func AttachLifecycle(bus *lifecycle.Bus, registry *Registry) *LifecycleBridge {
	b := NewLifecycleBridge(registry)
	cancel := bus.Subscribe(b)
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	return b
}

// OnLifecycle implements lifecycle.Listener. It returns false once the
// bridge has retired.
func (b *LifecycleBridge) OnLifecycle(moduleID string, event lifecycle.Event) bool {
	if b.retired.Load() {
		return false
	}
	if moduleID != b.registry.ModuleID() {
		return true
	}
	switch event {
	case lifecycle.EventActivate:
		b.registry.ActivateListeners()
		return true
	case lifecycle.EventFreeze:
		b.registry.FreezeListeners()
		return true
	case lifecycle.EventUnload:
		return b.unload()
	default:
		return true
	}
}

// unload seals the registry and deletes every record live at that instant.
// A failed delete is retried once after the others. A record that still
// fails stays in the sealed registry until a manual Delete.
func (b *LifecycleBridge) unload() bool {
	if !b.retired.CompareAndSwap(false, true) {
		return false
	}

	var failed []*HookRecord
	for _, record := range b.registry.close() {
		b.logger.Info("deleting watch on module unload",
			"watch_id", record.WatchID(),
			"listener_handle", record.ListenerHandle(),
		)
		if err := b.registry.Delete(record.WatchID()); err != nil {
			b.logger.Warn("delete on module unload failed, will retry",
				"watch_id", record.WatchID(),
				"error", err,
			)
			failed = append(failed, record)
		}
	}
	for _, record := range failed {
		if err := b.registry.Delete(record.WatchID()); err != nil {
			b.logger.Error("delete on module unload failed, hook left installed",
				"watch_id", record.WatchID(),
				"remaining", b.registry.Len(),
				"error", err,
			)
		}
	}

	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return false
}

// Retired reports whether the bridge has handled its module's unload.
func (b *LifecycleBridge) Retired() bool {
	return b.retired.Load()
}

var _ lifecycle.Listener = (*LifecycleBridge)(nil)
