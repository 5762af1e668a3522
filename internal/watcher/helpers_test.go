package watcher

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/roach88/watchcore/internal/ir"
	"github.com/roach88/watchcore/internal/lifecycle"
	"github.com/roach88/watchcore/internal/simhost"
)

var (
	cart     = ir.LoadedType{Name: "com.shop.Cart", Methods: []string{"add", "remove"}}
	checkout = ir.LoadedType{Name: "com.shop.Checkout", Methods: []string{"pay"}}
	panel    = ir.LoadedType{Name: "com.shop.admin.Panel", Methods: []string{"open"}}
	lambda   = ir.LoadedType{Name: "com.shop.Cart$$Lambda$17", Methods: []string{"apply"}}
	strs     = ir.LoadedType{Name: "org.util.Strings"}

	shop = ir.NamePrefix("com.shop.")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	registry *Registry
	runtime  *simhost.Runtime
	module   *lifecycle.Module
	reports  *reportLog
}

// newFixture builds a registry for module "orders" over a runtime with
// the shop types loaded.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	rt := simhost.New(discardLogger())
	for _, lt := range []ir.LoadedType{cart, checkout, panel, lambda, strs} {
		rt.Load(lt)
	}

	module := lifecycle.NewModule("orders")
	reports := &reportLog{}
	all := append([]Option{
		WithLogger(discardLogger()),
		WithReporter(reports),
		WithTokenGenerator(NewFixedGenerator("op-1", "op-2", "op-3", "op-4")),
	}, opts...)

	return &fixture{
		registry: NewRegistry(module, rt, rt, rt, all...),
		runtime:  rt,
		module:   module,
		reports:  reports,
	}
}

type reportLog struct {
	mu      sync.Mutex
	reports []OperationReport
}

func (l *reportLog) Report(r OperationReport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, r)
}

func (l *reportLog) All() []OperationReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]OperationReport, len(l.reports))
	copy(out, l.reports)
	return out
}

// nopListener ignores events.
var nopListener = ir.ListenerFunc(func(ir.Event) error { return nil })
