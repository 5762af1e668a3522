package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/watchcore/internal/config"
	"github.com/roach88/watchcore/internal/ir"
	"github.com/roach88/watchcore/internal/lifecycle"
	"github.com/roach88/watchcore/internal/simhost"
	"github.com/roach88/watchcore/internal/watcher"
)

// errInjected is the cause of every failure a scenario injects.
var errInjected = errors.New("injected failure")

// errScopedCallback is returned by a scoped step's callback when it is
// told to fail.
var errScopedCallback = errors.New("scoped callback failed")

// Option configures a scenario run.
type Option func(*runOptions)

type runOptions struct {
	config   config.Config
	logger   *slog.Logger
	reporter watcher.Reporter
}

// WithConfig sets the registry configuration. Default: config.Default().
func WithConfig(cfg config.Config) Option {
	return func(o *runOptions) {
		o.config = cfg
	}
}

// WithLogger sets the logger for the registry and the host.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReporter receives the registry's operation reports, e.g. a journal.
func WithReporter(reporter watcher.Reporter) Option {
	return func(o *runOptions) {
		o.reporter = reporter
	}
}

// runner executes one scenario.
//
// Thread-safety: trace, refs and result are guarded by mu because
// parallel steps run on several goroutines.
type runner struct {
	scenario *Scenario
	runtime  *simhost.Runtime
	module   *lifecycle.Module
	bus      *lifecycle.Bus
	registry *watcher.Registry
	seq      *watcher.Sequencer

	mu     sync.Mutex
	result *Result
	refs   map[string]int64
}

// Run executes a scenario against a fresh simulated host.
//
// Execution flow:
// 1. Load the scenario's types into the host, injecting failures
// 2. Create the module, its registry and lifecycle bridge
// 3. Execute steps in order
// 4. Check assertions
//
// Unexpected step errors fail the result; they do not abort the run.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := runOptions{
		config: config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if scenario.BulkProgress != nil {
		o.config.BulkProgress = *scenario.BulkProgress
	}

	rt := simhost.New(o.logger)
	for _, t := range scenario.Types {
		rt.Load(t.loaded())
		if t.Fail {
			rt.FailRetransform(t.Name, errInjected)
		}
	}
	if scenario.FailBulk {
		rt.FailBulk(errInjected)
	}

	module := lifecycle.NewModule(scenario.Module)
	if scenario.Activated {
		module.Activate()
	}

	registryOpts := append(o.config.RegistryOptions(),
		watcher.WithLogger(o.logger),
		watcher.WithTokenGenerator(newScenarioTokens(scenario.Name)),
	)
	if o.reporter != nil {
		registryOpts = append(registryOpts, watcher.WithReporter(o.reporter))
	}

	r := &runner{
		scenario: scenario,
		runtime:  rt,
		module:   module,
		bus:      lifecycle.NewBus(o.logger),
		registry: watcher.NewRegistry(module, rt, rt, rt, registryOpts...),
		seq:      watcher.NewSequencer(1),
		result:   NewResult(),
		refs:     make(map[string]int64),
	}
	watcher.AttachLifecycle(r.bus, r.registry)

	for i, step := range scenario.Steps {
		if err := r.runStep(fmt.Sprintf("steps[%d]", i), step, true); err != nil {
			return nil, err
		}
	}

	r.result.Stats.Records = r.registry.Len()
	checkAssertions(r, r.result)
	return r.result, nil
}

// runStep executes one step. The returned error is a harness failure;
// step failures are recorded on the result.
func (r *runner) runStep(at string, step Step, traced bool) error {
	kind, _ := step.kind()
	switch kind {
	case "watch":
		return r.watch(at, *step.Watch, traced)
	case "delete":
		return r.delete(at, *step.Delete, traced)
	case "invoke":
		n, err := r.runtime.Invoke(step.Invoke.Type, step.Invoke.Method)
		if err != nil {
			r.fail("%s: invoke %s.%s: %v", at, step.Invoke.Type, step.Invoke.Method, err)
		}
		if traced {
			r.trace(TraceEvent{Type: TraceInvoke, TypeName: step.Invoke.Type, Detail: step.Invoke.Method, Count: n})
		}
		return nil
	case "load":
		r.runtime.Load(step.Load.loaded())
		if step.Load.Fail {
			r.runtime.FailRetransform(step.Load.Name, errInjected)
		}
		r.trace(TraceEvent{Type: TraceLoad, TypeName: step.Load.Name, Count: len(r.runtime.WovenHandles(step.Load.Name))})
		return nil
	case "unload":
		r.fire(lifecycle.EventUnload)
		return nil
	case "activate":
		r.module.Activate()
		r.fire(lifecycle.EventActivate)
		return nil
	case "freeze":
		r.module.Freeze()
		r.fire(lifecycle.EventFreeze)
		return nil
	case "scoped":
		return r.scoped(at, *step.Scoped)
	case "parallel":
		return r.parallel(at, step.Parallel)
	default:
		return fmt.Errorf("%s: no action", at)
	}
}

func (r *runner) watch(at string, w WatchStep, traced bool) error {
	predicate, kinds, err := watchArgs(w)
	if err != nil {
		return fmt.Errorf("%s: %w", at, err)
	}

	var progress watcher.Progress
	if w.Progress {
		progress = r.progressSink(w.As, traced)
	}

	id, err := r.registry.WatchWithProgress(predicate, r.listener(), progress, kinds)
	if !r.expect(at, "watch", err, w.ExpectError, traced) {
		return nil
	}

	if w.As != "" {
		r.mu.Lock()
		r.refs[w.As] = id
		r.mu.Unlock()
	}
	if traced {
		r.trace(TraceEvent{Type: TraceWatch, Ref: w.As, WatchID: id, Detail: kinds.String()})
	}
	return nil
}

func (r *runner) delete(at string, d DeleteStep, traced bool) error {
	id := d.ID
	if d.Ref != "" {
		r.mu.Lock()
		ref, ok := r.refs[d.Ref]
		r.mu.Unlock()
		if !ok {
			return fmt.Errorf("%s: unknown watch ref %q", at, d.Ref)
		}
		id = ref
	}

	var progress watcher.Progress
	if d.Progress {
		progress = r.progressSink(d.Ref, traced)
	}

	err := r.registry.DeleteWithProgress(id, progress)
	if !r.expect(at, "delete", err, d.ExpectError, traced) {
		return nil
	}
	if traced {
		r.trace(TraceEvent{Type: TraceDelete, Ref: d.Ref, WatchID: id})
	}
	return nil
}

func (r *runner) scoped(at string, s ScopedStep) error {
	predicate, kinds, err := watchArgs(s.WatchStep)
	if err != nil {
		return fmt.Errorf("%s: %w", at, err)
	}

	var watchProgress, deleteProgress watcher.Progress
	if s.Progress {
		watchProgress = r.progressSink(s.As, true)
		deleteProgress = r.progressSink(s.As, true)
	}

	var harnessErr error
	ready := func() error {
		r.trace(TraceEvent{Type: TraceScoped, Ref: s.As, Stage: "enter", Count: r.registry.Len()})
		for i, step := range s.Steps {
			if err := r.runStep(fmt.Sprintf("%s.scoped.steps[%d]", at, i), step, true); err != nil {
				harnessErr = err
				return err
			}
		}
		if s.Fail {
			return errScopedCallback
		}
		return nil
	}

	err = r.registry.WatchingWithProgress(predicate, r.listener(), kinds, watchProgress, ready, deleteProgress)
	if harnessErr != nil {
		return harnessErr
	}

	expected := s.ExpectError
	if s.Fail && expected == "" {
		expected = errScopedCallback.Error()
	}
	if r.expect(at, "scoped", err, expected, true) {
		r.trace(TraceEvent{Type: TraceScoped, Ref: s.As, Stage: "exit", Count: r.registry.Len()})
	}
	return nil
}

// parallel runs steps concurrently. Their individual outcomes are not
// traced; one summary entry follows once all of them finish.
func (r *runner) parallel(at string, steps []Step) error {
	var g errgroup.Group
	for i, step := range steps {
		i, step := i, step
		g.Go(func() error {
			return r.runStep(fmt.Sprintf("%s.parallel[%d]", at, i), step, false)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.trace(TraceEvent{Type: TraceParallel, Count: len(steps), Total: r.registry.Len()})
	return nil
}

// expect compares a step error with the expected error substring. It
// returns true if the step succeeded and continues normally.
func (r *runner) expect(at, op string, err error, want string, traced bool) bool {
	switch {
	case err == nil && want == "":
		return true
	case err == nil:
		r.fail("%s: %s succeeded, expected error containing %q", at, op, want)
		return true
	case want == "":
		r.fail("%s: %s failed: %v", at, op, err)
	case !strings.Contains(err.Error(), want):
		r.fail("%s: %s error %q does not contain %q", at, op, err.Error(), want)
	}
	if traced {
		r.trace(TraceEvent{Type: TraceError, Detail: fmt.Sprintf("%s: %v", op, err)})
	}
	return false
}

func (r *runner) fire(event lifecycle.Event) {
	r.bus.Fire(r.scenario.Module, event)
	r.trace(TraceEvent{Type: TraceLifecycle, Detail: event.String(), Count: r.registry.Len()})
}

// listener counts delivered events.
func (r *runner) listener() ir.EventListener {
	return ir.ListenerFunc(func(ir.Event) error {
		r.mu.Lock()
		r.result.Stats.Events++
		r.mu.Unlock()
		return nil
	})
}

func (r *runner) trace(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.Seq = r.seq.Next()
	r.result.Trace = append(r.result.Trace, ev)
}

func (r *runner) fail(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.AddError(fmt.Sprintf(format, args...))
}

func watchArgs(w WatchStep) (ir.Predicate, ir.EventKinds, error) {
	predicate, err := w.predicate()
	if err != nil {
		return nil, 0, err
	}
	kinds, err := w.kinds()
	if err != nil {
		return nil, 0, err
	}
	return predicate, kinds, nil
}

// scenarioTokens issues "<name>-0001", "<name>-0002", ...
type scenarioTokens struct {
	prefix string
	seq    *watcher.Sequencer
}

func newScenarioTokens(prefix string) *scenarioTokens {
	return &scenarioTokens{prefix: prefix, seq: watcher.NewSequencer(1)}
}

func (g *scenarioTokens) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.seq.Next())
}
