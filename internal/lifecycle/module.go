package lifecycle

import "sync/atomic"

// Module is the unit that owns watches. Identity is immutable; the
// activation flag flips as the module is activated or frozen.
type Module struct {
	id        string
	activated atomic.Bool
}

// NewModule creates a frozen module.
func NewModule(id string) *Module {
	return &Module{id: id}
}

// ID returns the module's unique identity.
func (m *Module) ID() string {
	return m.id
}

// IsActivated reports whether listeners should be live.
func (m *Module) IsActivated() bool {
	return m.activated.Load()
}

// Activate marks the module active. Returns false if it already was.
func (m *Module) Activate() bool {
	return m.activated.CompareAndSwap(false, true)
}

// Freeze marks the module inactive. Returns false if it already was.
func (m *Module) Freeze() bool {
	return m.activated.CompareAndSwap(true, false)
}
