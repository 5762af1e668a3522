package simhost

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/watchcore/internal/ir"
)

// stubHook is a minimal ir.Hook that records Affect calls.
type stubHook struct {
	watchID   int64
	handle    int64
	predicate ir.Predicate
	kinds     ir.EventKinds

	mu       sync.Mutex
	affected map[string]int
}

func newStubHook(watchID, handle int64, predicate ir.Predicate) *stubHook {
	return &stubHook{
		watchID:   watchID,
		handle:    handle,
		predicate: predicate,
		kinds:     ir.DefaultEventKinds,
		affected:  make(map[string]int),
	}
}

func (h *stubHook) WatchID() int64            { return h.watchID }
func (h *stubHook) ModuleID() string          { return "mod" }
func (h *stubHook) Predicate() ir.Predicate   { return h.predicate }
func (h *stubHook) EventKinds() ir.EventKinds { return h.kinds }
func (h *stubHook) ListenerHandle() int64     { return h.handle }

func (h *stubHook) Affect(t ir.LoadedType, methods int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.affected[t.Name] = methods
}

func (h *stubHook) Affected() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.affected))
	for k, v := range h.affected {
		out[k] = v
	}
	return out
}

func loadFixture(rt *Runtime) {
	rt.Load(ir.LoadedType{Name: "com.shop.Cart", Methods: []string{"add", "remove"}})
	rt.Load(ir.LoadedType{Name: "com.shop.Checkout", Methods: []string{"pay"}})
	rt.Load(ir.LoadedType{Name: "com.shop.admin.Panel", Methods: []string{"open"}})
	rt.Load(ir.LoadedType{Name: "org.util.Strings"})
}

func TestFind_DirectoryOrder(t *testing.T) {
	rt := New(nil)
	rt.Load(ir.LoadedType{Name: "b.B"})
	rt.Load(ir.LoadedType{Name: "a.A"})
	rt.Load(ir.LoadedType{Name: "a.A", Loader: "plugin"})

	names := ir.TypeNames(rt.Types())
	assert.Equal(t, []string{"a.A", "a.A", "b.B"}, names)

	types := rt.Types()
	assert.Equal(t, "", types[0].Loader)
	assert.Equal(t, "plugin", types[1].Loader)
}

func TestFind_PrefixWalk(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	found := rt.Find(ir.NamePrefix("com.shop."))
	assert.Equal(t, []string{"com.shop.Cart", "com.shop.Checkout", "com.shop.admin.Panel"}, ir.TypeNames(found))
}

func TestFind_Pattern(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	found := rt.Find(ir.MustNamePattern("com.shop.*"))
	assert.Equal(t, []string{"com.shop.Cart", "com.shop.Checkout"}, ir.TypeNames(found))

	found = rt.Find(ir.MustNamePattern("com.**"))
	assert.Len(t, found, 3)
}

func TestLoad_ReplacesSameKey(t *testing.T) {
	rt := New(nil)
	rt.Load(ir.LoadedType{Name: "a.A", Methods: []string{"x"}})
	rt.Load(ir.LoadedType{Name: "a.A", Methods: []string{"x", "y"}})

	types := rt.Types()
	require.Len(t, types, 1)
	assert.Equal(t, []string{"x", "y"}, types[0].Methods)
}

func TestInstall_TakesEffectOnRetransform(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	hook := newStubHook(1000, 1, ir.NameEquals("com.shop.Cart"))
	require.NoError(t, rt.Install(hook))
	assert.False(t, rt.IsRewritten("com.shop.Cart"))

	require.NoError(t, rt.Retransform(ir.LoadedType{Name: "com.shop.Cart"}))
	assert.True(t, rt.IsRewritten("com.shop.Cart"))
	assert.Equal(t, map[string]int{"com.shop.Cart": 2}, hook.Affected())
	assert.Equal(t, []int64{1}, rt.WovenHandles("com.shop.Cart"))
}

func TestInstall_Twice(t *testing.T) {
	rt := New(nil)
	hook := newStubHook(1000, 1, ir.NameEquals("x"))
	require.NoError(t, rt.Install(hook))

	err := rt.Install(hook)
	assert.ErrorIs(t, err, ErrHookInstalled)
}

func TestUninstall_Unknown(t *testing.T) {
	rt := New(nil)
	err := rt.Uninstall(newStubHook(1000, 1, ir.NameEquals("x")))
	assert.ErrorIs(t, err, ErrHookNotInstalled)
}

func TestUninstall_RevertsOnRetransform(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)
	cart := ir.LoadedType{Name: "com.shop.Cart"}

	hook := newStubHook(1000, 1, ir.NameEquals("com.shop.Cart"))
	require.NoError(t, rt.Install(hook))
	require.NoError(t, rt.Retransform(cart))
	require.NoError(t, rt.Uninstall(hook))

	assert.True(t, rt.IsRewritten("com.shop.Cart"), "woven code stays until retransform")

	require.NoError(t, rt.Retransform(cart))
	assert.False(t, rt.IsRewritten("com.shop.Cart"))
	assert.Equal(t, 0, rt.InstalledHooks())
}

func TestLoad_WeavesInstalledHooks(t *testing.T) {
	rt := New(nil)
	hook := newStubHook(1000, 1, ir.NamePrefix("com."))
	require.NoError(t, rt.Install(hook))

	rt.Load(ir.LoadedType{Name: "com.late.Type", Methods: []string{"run"}})

	assert.True(t, rt.IsRewritten("com.late.Type"))
	assert.Equal(t, map[string]int{"com.late.Type": 1}, hook.Affected())
}

func TestRetransformAll_AllOrNothing(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)
	hook := newStubHook(1000, 1, ir.NamePrefix("com.shop."))
	require.NoError(t, rt.Install(hook))

	boom := errors.New("malformed")
	rt.FailRetransform("com.shop.Checkout", boom)

	err := rt.RetransformAll(rt.Find(hook.Predicate()))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rt.RetransformLog())
	assert.Empty(t, hook.Affected())
	assert.Equal(t, int64(1), rt.BulkCalls())

	rt.FailRetransform("com.shop.Checkout", nil)
	require.NoError(t, rt.RetransformAll(rt.Find(hook.Predicate())))
	assert.Equal(t, []string{"com.shop.Cart", "com.shop.Checkout", "com.shop.admin.Panel"}, rt.RetransformLog())
}

func TestFailBulk(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)
	boom := errors.New("bulk unsupported")
	rt.FailBulk(boom)

	assert.ErrorIs(t, rt.RetransformAll(rt.Types()), boom)
	require.NoError(t, rt.Retransform(ir.LoadedType{Name: "org.util.Strings"}))
	assert.Equal(t, int64(1), rt.SingleCalls())
}

func TestRetransform_NotLoaded(t *testing.T) {
	rt := New(nil)
	err := rt.Retransform(ir.LoadedType{Name: "ghost.Type"})
	assert.ErrorIs(t, err, ErrTypeNotLoaded)
}

func TestPanicRetransform(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)
	rt.PanicRetransform("org.util.Strings", true)

	assert.Panics(t, func() {
		_ = rt.Retransform(ir.LoadedType{Name: "org.util.Strings"})
	})

	rt.PanicRetransform("org.util.Strings", false)
	assert.NoError(t, rt.Retransform(ir.LoadedType{Name: "org.util.Strings"}))
}

func TestFailInstallAndUninstall(t *testing.T) {
	rt := New(nil)
	hook := newStubHook(1000, 1, ir.NameEquals("x"))

	denied := errors.New("denied")
	rt.FailInstall(denied)
	assert.ErrorIs(t, rt.Install(hook), denied)
	rt.FailInstall(nil)
	require.NoError(t, rt.Install(hook))

	rt.FailUninstall(denied)
	assert.ErrorIs(t, rt.Uninstall(hook), denied)
	rt.FailUninstall(nil)
	assert.NoError(t, rt.Uninstall(hook))
}

func TestFailUninstallOnce(t *testing.T) {
	rt := New(nil)
	hook := newStubHook(1000, 1, ir.NameEquals("x"))
	require.NoError(t, rt.Install(hook))

	busy := errors.New("busy")
	rt.FailUninstallOnce(busy)
	assert.ErrorIs(t, rt.Uninstall(hook), busy)
	assert.NoError(t, rt.Uninstall(hook))
}

type eventLog struct {
	mu     sync.Mutex
	events []ir.Event
	err    error
}

func (l *eventLog) OnEvent(ev ir.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return l.err
}

func TestInvoke_DeliversToActiveListeners(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	hook := newStubHook(1000, 7, ir.NameEquals("com.shop.Cart"))
	require.NoError(t, rt.Install(hook))
	require.NoError(t, rt.Retransform(ir.LoadedType{Name: "com.shop.Cart"}))

	log := &eventLog{}
	n, err := rt.Invoke("com.shop.Cart", "add")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "not activated yet")

	rt.Activate(7, log, ir.KindsOf(ir.EventBefore, ir.EventReturn))
	assert.True(t, rt.IsActive(7))

	n, err = rt.Invoke("com.shop.Cart", "add")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, log.events, 2)
	assert.Equal(t, ir.EventBefore, log.events[0].Kind)
	assert.Equal(t, ir.EventReturn, log.events[1].Kind)
	assert.Equal(t, int64(7), log.events[0].ListenerHandle)
	assert.Equal(t, "add", log.events[0].Method)
	assert.Equal(t, log.events[0].InvokeID, log.events[1].InvokeID)

	rt.Deactivate(7)
	n, err = rt.Invoke("com.shop.Cart", "add")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestInvoke_FiltersKinds(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	hook := newStubHook(1000, 3, ir.NameEquals("com.shop.Cart"))
	require.NoError(t, rt.Install(hook))
	require.NoError(t, rt.Retransform(ir.LoadedType{Name: "com.shop.Cart"}))

	log := &eventLog{}
	rt.Activate(3, log, ir.KindsOf(ir.EventReturn))

	n, err := rt.Invoke("com.shop.Cart", "remove")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ir.EventReturn, log.events[0].Kind)
}

func TestInvoke_JoinsListenerErrors(t *testing.T) {
	rt := New(nil)
	loadFixture(rt)

	hook := newStubHook(1000, 4, ir.NameEquals("com.shop.Cart"))
	require.NoError(t, rt.Install(hook))
	require.NoError(t, rt.Retransform(ir.LoadedType{Name: "com.shop.Cart"}))

	boom := errors.New("listener failed")
	rt.Activate(4, &eventLog{err: boom}, ir.KindsOf(ir.EventBefore))

	n, err := rt.Invoke("com.shop.Cart", "add")
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, boom)
}

func TestDeactivate_UnknownHandle(t *testing.T) {
	rt := New(nil)
	assert.NotPanics(t, func() { rt.Deactivate(99) })
	assert.False(t, rt.IsActive(99))
}
