// Package watcher implements the module event watcher: the coordination
// layer that attaches, observes and detaches rewrite hooks on types that
// are already loaded in a running host process.
//
// ARCHITECTURE:
//
// One Registry per owning module. A watch is a HookRecord (predicate,
// listener, enabled event kinds) installed with the host's rewrite
// service, followed by a retransformation of every loaded type the
// predicate matches so that the hook takes effect without a restart.
//
// Watch Flow:
// 1. Sequencer issues the watch id (strictly increasing, from a base)
// 2. HookRecord is added to the module's record set
// 3. Hook is installed with the RewriteService (covers future loads)
// 4. TypeDirectory is asked for matching loaded types, ephemeral lambda
// types are dropped
// 5. The retransform coordinator rewrites them, bulk first
// 6. The listener is activated if the module is active
//
// Delete runs the flow backwards and retransforms the types the removed
// predicates matched, so the rewrite service re-derives them from the
// smaller hook set.
//
// Retransformation:
// Without a progress sink the coordinator makes one bulk call. With a sink,
// or when the bulk call fails, it rewrites one type at a time; a failing
// type is reported and skipped, never fatal. Sink callbacks are isolated:
// a panicking sink is logged and ignored.
//
// Concurrency:
// Watch, Delete and the LifecycleBridge may run concurrently on one
// Registry. The record set is lock guarded and iterated by snapshot.
// Delete claims records atomically, so a record is released exactly once
// even when a direct Delete races module unload. No goroutines are
// started; every call runs on the caller's goroutine.
package watcher
