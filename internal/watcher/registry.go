package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/watchcore/internal/ir"
)

// RewriteService is the host's bytecode rewrite primitive.
//
// Install and Uninstall failures are fatal to the calling Watch or Delete
// and are returned unmodified. Retransform failures are recovered by the
// registry.
type RewriteService interface {
	Install(hook ir.Hook) error
	Uninstall(hook ir.Hook) error
	Retransform(t ir.LoadedType) error
	RetransformAll(types []ir.LoadedType) error
}

// TypeDirectory lists loaded types matching a predicate.
type TypeDirectory interface {
	Find(predicate ir.Predicate) []ir.LoadedType
}

// ActivationService turns listener delivery on and off for a hook.
type ActivationService interface {
	Activate(handle int64, listener ir.EventListener, kinds ir.EventKinds)
	Deactivate(handle int64)
}

// Module is the registry's owner.
type Module interface {
	ID() string
	IsActivated() bool
}

// Registry is one module's module event watcher.
//
// Thread-safety model:
//   - Watch, Delete and Watching: safe from any goroutine
//   - Records, Lookup, Len: safe from any goroutine, return snapshots
//   - Nothing runs in the background; every call blocks its caller for as
//     long as the rewrite service takes
//
// INVARIANTS:
//   - Watch ids are issued once and never reused
//   - A record belongs to this registry's module for its whole life
//   - A record is uninstalled at most once
type Registry struct {
	module    Module
	rewriter  RewriteService
	directory TypeDirectory
	activator ActivationService

	watchIDBase int64
	watchIDs    *Sequencer
	records     *recordSet
	coordinator *retransformer
	markers     []string
	tokens      TokenGenerator
	reporter    Reporter
	logger      *slog.Logger

	// gate is held shared by every in-flight Watch and Delete and exclusively
	// by close and the listener fan-outs, so an unload never sees a
	// half-installed record and a freeze never misses a late activation.
	gate sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWatchIDBase sets the first watch id. Default: DefaultWatchIDBase.
func WithWatchIDBase(base int64) Option {
	return func(r *Registry) {
		r.watchIDBase = base
	}
}

// WithEphemeralMarkers adds name markers of types that are never
// retransformed. ir.DefaultEphemeralMarkers always apply.
func WithEphemeralMarkers(markers []string) Option {
	return func(r *Registry) {
		r.markers = append(r.markers, markers...)
	}
}

// WithBulkProgress lets calls that carry a progress sink try the bulk
// rewrite first and synthesize per-type success reports when it succeeds.
// Without it a progress sink always forces per-type rewriting.
func WithBulkProgress(enabled bool) Option {
	return func(r *Registry) {
		r.coordinator.bulkProgress = enabled
	}
}

// WithReporter receives an OperationReport after each Watch and Delete.
func WithReporter(reporter Reporter) Option {
	return func(r *Registry) {
		r.reporter = reporter
	}
}

// WithTokenGenerator sets the operation token source. Default: UUIDv7Generator.
func WithTokenGenerator(tokens TokenGenerator) Option {
	return func(r *Registry) {
		if tokens != nil {
			r.tokens = tokens
		}
	}
}

// NewRegistry creates the watcher for module on top of the host
// collaborators.
func NewRegistry(
	module Module,
	rewriter RewriteService,
	directory TypeDirectory,
	activator ActivationService,
	opts ...Option,
) *Registry {
	r := &Registry{
		module:      module,
		rewriter:    rewriter,
		directory:   directory,
		activator:   activator,
		watchIDBase: DefaultWatchIDBase,
		records:     newRecordSet(),
		coordinator: &retransformer{rewriter: rewriter},
		markers:     append([]string(nil), ir.DefaultEphemeralMarkers...),
		tokens:      UUIDv7Generator{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.watchIDs = NewSequencer(r.watchIDBase)
	r.logger = r.logger.With("module", module.ID())
	r.coordinator.logger = r.logger
	return r
}

// ModuleID returns the owning module's id.
func (r *Registry) ModuleID() string {
	return r.module.ID()
}

// Watch installs a hook for predicate without progress reporting.
func (r *Registry) Watch(predicate ir.Predicate, listener ir.EventListener, kinds ir.EventKinds) (int64, error) {
	return r.WatchWithProgress(predicate, listener, nil, kinds)
}

// WatchWithProgress installs a hook for predicate and retransforms every
// matching loaded type, reporting to progress if it is non-nil.
//
// Per-type rewrite failures are reported, never returned: the watch id is
// returned and the hook stays installed. Only an Install failure is
// returned, unmodified, and then no watch exists.
//
// progress must not call back into the registry.
func (r *Registry) WatchWithProgress(predicate ir.Predicate, listener ir.EventListener, progress Progress, kinds ir.EventKinds) (int64, error) {
	if predicate == nil {
		return 0, ErrNilPredicate
	}
	if listener == nil {
		return 0, ErrNilListener
	}

	r.gate.RLock()
	defer r.gate.RUnlock()

	watchID := r.watchIDs.Next()
	record := newHookRecord(watchID, r.module.ID(), predicate, listener, kinds)
	if !r.records.add(record) {
		return 0, ErrRegistryClosed
	}

	if err := r.rewriter.Install(record); err != nil {
		r.records.claim(watchID)
		r.logger.Error("install hook failed",
			"watch_id", watchID,
			"error", err,
		)
		return 0, err
	}

	token := r.tokens.Generate()
	targets := r.retransformTargets(r.directory.Find(predicate))

	r.logger.Info("watch installed",
		"op", OpWatch,
		"token", token,
		"watch_id", watchID,
		"kinds", kinds.String(),
		"targets", len(targets),
	)

	sink := newProgressReporter(progress, r.logger, watchID)
	var affectedTypes, affectedMethods int
	var pass RetransformReport
	sink.begin(len(targets))
	defer func() {
		sink.finish(affectedTypes, affectedMethods)
		r.report(OperationReport{
			Token:             token,
			Op:                OpWatch,
			ModuleID:          r.module.ID(),
			WatchID:           watchID,
			EventKinds:        kinds.String(),
			AffectedTypes:     affectedTypes,
			AffectedMethods:   affectedMethods,
			RetransformReport: pass,
		})
	}()

	pass = r.coordinator.run(watchID, targets, sink)
	affectedTypes, affectedMethods = record.Counts()

	if r.module.IsActivated() {
		r.activator.Activate(record.ListenerHandle(), listener, kinds)
		r.logger.Debug("listener activated",
			"watch_id", watchID,
			"listener_handle", record.ListenerHandle(),
		)
	}

	return watchID, nil
}

// Delete removes a watch without progress reporting.
func (r *Registry) Delete(watchID int64) error {
	return r.DeleteWithProgress(watchID, nil)
}

// DeleteWithProgress removes the watch with watchID and retransforms the
// types it matched so the rewrite service can revert them.
//
// An unknown id is not an error: nothing is released and nothing is
// retransformed. An Uninstall failure is returned unmodified and leaves
// the record in place so the delete can be retried.
func (r *Registry) DeleteWithProgress(watchID int64, progress Progress) error {
	r.gate.RLock()
	defer r.gate.RUnlock()

	claimed := r.records.claim(watchID)

	var predicates []ir.Predicate
	var affectedTypes, affectedMethods int
	for i, record := range claimed {
		r.activator.Deactivate(record.ListenerHandle())

		if err := r.rewriter.Uninstall(record); err != nil {
			r.records.restore(claimed[i:]...)
			if r.module.IsActivated() {
				r.activator.Activate(record.ListenerHandle(), record.Listener(), record.EventKinds())
			}
			r.logger.Error("uninstall hook failed",
				"watch_id", watchID,
				"error", err,
			)
			return err
		}

		types, methods := record.Counts()
		affectedTypes += types
		affectedMethods += methods
		predicates = append(predicates, record.Predicate())
	}

	sink := newProgressReporter(progress, r.logger, watchID)
	if len(claimed) == 0 {
		r.logger.Debug("delete of unknown watch ignored",
			"watch_id", watchID,
		)
		sink.begin(0)
		sink.finish(0, 0)
		return nil
	}

	token := r.tokens.Generate()
	targets := r.retransformTargets(r.directory.Find(ir.AnyOf(predicates...)))

	r.logger.Info("watch deleted",
		"op", OpDelete,
		"token", token,
		"watch_id", watchID,
		"targets", len(targets),
	)

	var pass RetransformReport
	sink.begin(len(targets))
	defer func() {
		sink.finish(affectedTypes, affectedMethods)
		r.report(OperationReport{
			Token:             token,
			Op:                OpDelete,
			ModuleID:          r.module.ID(),
			WatchID:           watchID,
			AffectedTypes:     affectedTypes,
			AffectedMethods:   affectedMethods,
			RetransformReport: pass,
		})
	}()

	pass = r.coordinator.run(watchID, targets, sink)
	return nil
}

// Watching installs a watch, runs ready, and deletes the watch afterwards
// whether ready returns, fails or panics.
func (r *Registry) Watching(predicate ir.Predicate, listener ir.EventListener, kinds ir.EventKinds, ready func() error) error {
	return r.WatchingWithProgress(predicate, listener, kinds, nil, ready, nil)
}

// WatchingWithProgress is Watching with separate progress sinks for the
// watch and the delete half.
//
// The returned error joins ready's error and any Delete failure.
func (r *Registry) WatchingWithProgress(
	predicate ir.Predicate,
	listener ir.EventListener,
	kinds ir.EventKinds,
	watchProgress Progress,
	ready func() error,
	deleteProgress Progress,
) (err error) {
	if ready == nil {
		return ErrNilCallback
	}

	watchID, err := r.WatchWithProgress(predicate, listener, watchProgress, kinds)
	if err != nil {
		return err
	}
	defer func() {
		if deleteErr := r.DeleteWithProgress(watchID, deleteProgress); deleteErr != nil {
			err = errors.Join(err, fmt.Errorf("delete watch %d: %w", watchID, deleteErr))
		}
	}()

	return ready()
}

// ActivateListeners activates the listener of every live record. The
// owner calls it after the module becomes active. It waits for in-flight
// Watch and Delete calls, so it must not be called from a progress sink.
func (r *Registry) ActivateListeners() int {
	r.gate.Lock()
	defer r.gate.Unlock()

	records := r.records.snapshot()
	for _, record := range records {
		r.activator.Activate(record.ListenerHandle(), record.Listener(), record.EventKinds())
	}
	r.logger.Debug("listeners activated",
		"count", len(records),
	)
	return len(records)
}

// FreezeListeners deactivates the listener of every live record. Hooks
// stay installed.
func (r *Registry) FreezeListeners() int {
	r.gate.Lock()
	defer r.gate.Unlock()

	records := r.records.snapshot()
	for _, record := range records {
		r.activator.Deactivate(record.ListenerHandle())
	}
	r.logger.Debug("listeners frozen",
		"count", len(records),
	)
	return len(records)
}

// Records returns a snapshot of the module's hook records in creation order.
func (r *Registry) Records() []*HookRecord {
	return r.records.snapshot()
}

// Lookup returns the record for watchID.
func (r *Registry) Lookup(watchID int64) (*HookRecord, bool) {
	return r.records.find(watchID)
}

// Len returns the number of live hook records.
func (r *Registry) Len() int {
	return r.records.len()
}

// Closed reports whether the registry stopped accepting watches. A closed
// registry with Len() > 0 holds records whose unload delete failed; they
// are removed only by an explicit Delete.
func (r *Registry) Closed() bool {
	return r.records.isSealed()
}

// close stops new watches and returns the records that were live at that
// instant. Only the first call returns records.
func (r *Registry) close() []*HookRecord {
	r.gate.Lock()
	defer r.gate.Unlock()
	return r.records.seal()
}

// retransformTargets drops ephemeral and duplicate types, keeping order.
func (r *Registry) retransformTargets(found []ir.LoadedType) []ir.LoadedType {
	targets := make([]ir.LoadedType, 0, len(found))
	seen := make(map[ir.TypeKey]struct{}, len(found))
	for _, t := range found {
		if t.IsEphemeral(r.markers) {
			r.logger.Debug("ephemeral type excluded",
				"type", t.Name,
			)
			continue
		}
		key := t.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, t)
	}
	return targets
}

func (r *Registry) report(report OperationReport) {
	if r.reporter == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("operation reporter failed",
				"watch_id", report.WatchID,
				"op", report.Op,
				"panic", fmt.Sprint(rec),
			)
		}
	}()
	r.reporter.Report(report)
}
