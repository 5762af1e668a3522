// Package harness runs watch scenarios against the simulated host.
//
// A scenario describes a module, the types loaded in the host, an ordered
// list of steps driving the module's watch registry, and assertions on
// the final state. Running a scenario yields a deterministic trace that
// can be compared against a golden file.
//
// # Scenario Format
//
//	name: partial_failure
//	description: "One malformed type does not block its peers"
//	module: orders
//	activated: true
//	types:
//	  - name: com.shop.Cart
//	    methods: [add, remove]
//	  - name: com.shop.Checkout
//	    methods: [pay]
//	    fail: true
//	steps:
//	  - watch: { as: shop, prefix: com.shop., progress: true }
//	  - invoke: { type: com.shop.Cart, method: add }
//	  - delete: { ref: shop }
//	assertions:
//	  - type: progress_failed
//	    count: 1
//	  - type: records
//	    count: 0
//
// # Steps
//
//   - watch: install a watch (pattern, prefix or name), optionally with progress
//   - delete: remove a watch by ref or id
//   - invoke: call a method on a loaded type, delivering events
//   - load: load a type after the registry exists
//   - unload, activate, freeze: fire a lifecycle event for the module
//   - scoped: a watch that lives only while nested steps run
//   - parallel: watch, delete and invoke steps run concurrently
//
// # Assertion Types
//
//   - records: number of live hook records
//   - rewritten, not_rewritten: which types carry woven hooks
//   - progress_success, progress_failed: progress callback counts
//   - events: listener events delivered
//
// # Deterministic Testing
//
// Operation tokens come from a per-scenario sequence, trace entries carry
// a logical seq, and parallel blocks are traced as one summary entry, so a
// scenario produces the same trace on every run.
package harness
