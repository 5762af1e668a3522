// Package simhost is an in-memory host runtime for the watch registry.
//
// Runtime plays the three host collaborators a registry needs: the rewrite
// service that installs hooks and retransforms types, the directory of
// loaded types, and the event activation table. It keeps enough state to
// answer "which types are rewritten, and for which hooks" and to dispatch
// events when a hooked method is invoked.
//
// ARCHITECTURE:
//
//  1. Load adds a type to the directory (a radix tree keyed by canonical
//     name) and weaves every installed hook whose predicate matches
//  2. Install and Uninstall change the hook table only; woven code stays
//     as it is until the next retransform of the type
//  3. Retransform re-derives a type's woven hooks from the hook table and
//     reports the rewrite to each hook through Affect
//  4. Invoke delivers events to the active listeners of the hooks woven
//     into a type, filtered by each hook's enabled kinds
//
// Failures can be injected per type, for the bulk path, and for Install
// and Uninstall, which is what scenario tests use to exercise recovery.
//
// simhost does not import the registry; it only sees ir.Hook.
package simhost
