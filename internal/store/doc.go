// Package store provides the SQLite-backed operation journal.
//
// Every completed Watch and Delete produces one OperationReport; the
// journal appends it so an operator can see, after the fact, which watch
// touched which types and how many rewrites failed.
//
// # Patterns
//
// Append-only:
//   - Rows are never updated or deleted
//   - UNIQUE(token, op, watch_id) makes a repeated write a no-op
//
// Logical ordering:
//   - Ordering uses the seq column, never timestamps
//   - All reads include ORDER BY seq ASC
//
// Canonical report:
//   - The full report is kept as canonical JSON beside the indexed columns
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
