// Package ir provides the shared vocabulary of the watch core.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. The host collaborators (rewrite
// service, loaded-type directory, event activation) and the watch registry
// meet here without importing each other.
//
// Key design constraints:
//   - Predicates and listeners are opaque to the core; ir only combines them
//   - Type names are compared after NFC normalisation
//   - Event kinds are a closed bit set, never free-form strings
//   - All JSON tags use snake_case
package ir
