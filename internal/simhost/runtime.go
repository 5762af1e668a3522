package simhost

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/armon/go-radix"

	"github.com/roach88/watchcore/internal/ir"
)

var (
	// ErrHookNotInstalled is returned by Uninstall for an unknown hook.
	ErrHookNotInstalled = errors.New("hook not installed")

	// ErrHookInstalled is returned by Install for a hook that is already in.
	ErrHookInstalled = errors.New("hook already installed")

	// ErrTypeNotLoaded is returned when a retransform names an unknown type.
	ErrTypeNotLoaded = errors.New("type not loaded")
)

// Runtime is a simulated host process.
//
// Thread-safety: all methods are safe for concurrent use. Listener
// callbacks run on the invoking goroutine without internal locks held.
type Runtime struct {
	mu sync.Mutex

	types *radix.Tree // directory key -> ir.LoadedType
	hooks map[int64]ir.Hook
	woven map[string][]int64 // directory key -> listener handles, ascending

	active map[int64]activation

	failInstall    error
	failUninstall  error
	uninstallOnce  bool
	failBulk       error
	failType       map[string]error
	panicType      map[string]bool
	retransformLog []string

	bulkCalls   atomic.Int64
	singleCalls atomic.Int64
	invokeIDs   atomic.Int64

	logger *slog.Logger
}

type activation struct {
	listener ir.EventListener
	kinds    ir.EventKinds
}

// New creates an empty runtime. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		types:     radix.New(),
		hooks:     make(map[int64]ir.Hook),
		woven:     make(map[string][]int64),
		active:    make(map[int64]activation),
		failType:  make(map[string]error),
		panicType: make(map[string]bool),
		logger:    logger,
	}
}

// directoryKey orders types by name, then loader.
func directoryKey(t ir.LoadedType) string {
	return t.CanonicalName() + "\x00" + t.Loader
}

// Load adds t to the directory, replacing a type with the same name and
// loader, and weaves every installed hook that matches it.
func (rt *Runtime) Load(t ir.LoadedType) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	key := directoryKey(t)
	rt.types.Insert(key, t)
	rt.weaveLocked(key, t)

	rt.logger.Debug("type loaded",
		"type", t.Name,
		"loader", t.Loader,
		"hooks", len(rt.woven[key]),
	)
}

// Types returns the loaded types in directory order.
func (rt *Runtime) Types() []ir.LoadedType {
	return rt.Find(ir.PredicateFunc(func(ir.LoadedType) bool { return true }))
}

// Find implements the registry's type directory. Results are in directory
// order; a NamePrefix predicate narrows the walk to its subtree.
func (rt *Runtime) Find(predicate ir.Predicate) []ir.LoadedType {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var found []ir.LoadedType
	visit := func(_ string, v interface{}) bool {
		t := v.(ir.LoadedType)
		if predicate.Matches(t) {
			found = append(found, t)
		}
		return false
	}

	if prefix, ok := predicate.(ir.NamePrefix); ok {
		rt.types.WalkPrefix(ir.CanonicalTypeName(string(prefix)), visit)
		return found
	}
	rt.types.Walk(visit)
	return found
}

// Install implements the rewrite service. The hook only takes effect on
// types retransformed or loaded afterwards.
func (rt *Runtime) Install(hook ir.Hook) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.failInstall != nil {
		return rt.failInstall
	}
	if _, ok := rt.hooks[hook.ListenerHandle()]; ok {
		return fmt.Errorf("install watch %d: %w", hook.WatchID(), ErrHookInstalled)
	}
	rt.hooks[hook.ListenerHandle()] = hook
	return nil
}

// Uninstall implements the rewrite service. Woven code stays until the
// types are retransformed.
func (rt *Runtime) Uninstall(hook ir.Hook) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.failUninstall; err != nil {
		if rt.uninstallOnce {
			rt.failUninstall, rt.uninstallOnce = nil, false
		}
		return err
	}
	if _, ok := rt.hooks[hook.ListenerHandle()]; !ok {
		return fmt.Errorf("uninstall watch %d: %w", hook.WatchID(), ErrHookNotInstalled)
	}
	delete(rt.hooks, hook.ListenerHandle())
	return nil
}

// Retransform implements the rewrite service for one type.
func (rt *Runtime) Retransform(t ir.LoadedType) error {
	rt.singleCalls.Add(1)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.checkLocked(t); err != nil {
		return err
	}
	rt.rewriteLocked(t)
	return nil
}

// RetransformAll implements the rewrite service's bulk path. It is
// all-or-nothing: if any type would fail, nothing is rewritten.
func (rt *Runtime) RetransformAll(types []ir.LoadedType) error {
	rt.bulkCalls.Add(1)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.failBulk != nil {
		return rt.failBulk
	}
	for _, t := range types {
		if err := rt.checkLocked(t); err != nil {
			return fmt.Errorf("bulk retransform: %w", err)
		}
	}
	for _, t := range types {
		rt.rewriteLocked(t)
	}
	return nil
}

func (rt *Runtime) checkLocked(t ir.LoadedType) error {
	name := t.CanonicalName()
	if rt.panicType[name] {
		panic(fmt.Sprintf("rewrite of %s crashed", t.Name))
	}
	if err, ok := rt.failType[name]; ok {
		return err
	}
	if _, ok := rt.types.Get(directoryKey(t)); !ok {
		return fmt.Errorf("retransform %s: %w", t.Name, ErrTypeNotLoaded)
	}
	return nil
}

func (rt *Runtime) rewriteLocked(t ir.LoadedType) {
	key := directoryKey(t)
	stored, _ := rt.types.Get(key)
	rt.weaveLocked(key, stored.(ir.LoadedType))
	rt.retransformLog = append(rt.retransformLog, t.Name)
}

// weaveLocked re-derives the hooks woven into a type and reports the
// rewrite to each of them.
func (rt *Runtime) weaveLocked(key string, t ir.LoadedType) {
	var handles []int64
	for handle, hook := range rt.hooks {
		if hook.Predicate().Matches(t) {
			handles = append(handles, handle)
			hook.Affect(t, len(t.Methods))
		}
	}
	slices.Sort(handles)
	if len(handles) == 0 {
		delete(rt.woven, key)
		return
	}
	rt.woven[key] = handles
}

// Activate implements the event activation service.
func (rt *Runtime) Activate(handle int64, listener ir.EventListener, kinds ir.EventKinds) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.active[handle] = activation{listener: listener, kinds: kinds}
}

// Deactivate implements the event activation service. Unknown handles are
// ignored.
func (rt *Runtime) Deactivate(handle int64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	delete(rt.active, handle)
}

// IsActive reports whether events for handle are delivered.
func (rt *Runtime) IsActive(handle int64) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.active[handle]
	return ok
}

// Invoke simulates a call of method on every loaded type named typeName.
// BEFORE then RETURN is delivered to each active listener woven into the
// type, skipping kinds the hook did not enable. Listener errors are joined.
// Returns the number of events delivered.
func (rt *Runtime) Invoke(typeName, method string) (int, error) {
	invokeID := rt.invokeIDs.Add(1)

	type target struct {
		handle int64
		activation
	}
	var targets []target
	var typeNames []string

	rt.mu.Lock()
	rt.types.WalkPrefix(ir.CanonicalTypeName(typeName)+"\x00", func(key string, v interface{}) bool {
		t := v.(ir.LoadedType)
		for _, handle := range rt.woven[key] {
			if a, ok := rt.active[handle]; ok {
				targets = append(targets, target{handle: handle, activation: a})
				typeNames = append(typeNames, t.Name)
			}
		}
		return false
	})
	rt.mu.Unlock()

	var delivered int
	var errs []error
	for _, kind := range []ir.EventKind{ir.EventBefore, ir.EventReturn} {
		for i, tgt := range targets {
			if !tgt.kinds.Has(kind) {
				continue
			}
			ev := ir.Event{
				Kind:           kind,
				InvokeID:       invokeID,
				ListenerHandle: tgt.handle,
				TypeName:       typeNames[i],
				Method:         method,
			}
			delivered++
			if err := tgt.listener.OnEvent(ev); err != nil {
				errs = append(errs, fmt.Errorf("listener %d on %s: %w", tgt.handle, kind, err))
			}
		}
	}
	return delivered, errors.Join(errs...)
}

// WovenHandles returns the listener handles currently woven into the
// type named typeName, across loaders.
func (rt *Runtime) WovenHandles(typeName string) []int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var handles []int64
	rt.types.WalkPrefix(ir.CanonicalTypeName(typeName)+"\x00", func(key string, _ interface{}) bool {
		handles = append(handles, rt.woven[key]...)
		return false
	})
	return handles
}

// IsRewritten reports whether any hook is woven into typeName.
func (rt *Runtime) IsRewritten(typeName string) bool {
	return len(rt.WovenHandles(typeName)) > 0
}

// InstalledHooks returns the number of installed hooks.
func (rt *Runtime) InstalledHooks() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.hooks)
}

// RetransformLog returns every type name rewritten so far, in order.
func (rt *Runtime) RetransformLog() []string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.retransformLog)
}

// BulkCalls returns how many times RetransformAll was called.
func (rt *Runtime) BulkCalls() int64 {
	return rt.bulkCalls.Load()
}

// SingleCalls returns how many times Retransform was called.
func (rt *Runtime) SingleCalls() int64 {
	return rt.singleCalls.Load()
}

// FailRetransform makes every rewrite of typeName fail with err.
// A nil err clears the failure.
func (rt *Runtime) FailRetransform(typeName string, err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	name := ir.CanonicalTypeName(typeName)
	if err == nil {
		delete(rt.failType, name)
		return
	}
	rt.failType[name] = err
}

// PanicRetransform makes every rewrite of typeName panic.
func (rt *Runtime) PanicRetransform(typeName string, enabled bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	name := ir.CanonicalTypeName(typeName)
	if !enabled {
		delete(rt.panicType, name)
		return
	}
	rt.panicType[name] = true
}

// FailBulk makes RetransformAll fail with err. A nil err clears it.
func (rt *Runtime) FailBulk(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failBulk = err
}

// FailInstall makes Install fail with err. A nil err clears it.
func (rt *Runtime) FailInstall(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failInstall = err
}

// FailUninstall makes Uninstall fail with err. A nil err clears it.
func (rt *Runtime) FailUninstall(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failUninstall, rt.uninstallOnce = err, false
}

// FailUninstallOnce makes the next Uninstall fail with err.
func (rt *Runtime) FailUninstallOnce(err error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.failUninstall, rt.uninstallOnce = err, true
}
