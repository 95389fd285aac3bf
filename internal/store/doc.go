// Package store provides SQLite-backed storage for composition snapshots.
//
// Every composition the CLI builds can be recorded with its surface
// (module order, capability union, configuration shape) and fingerprint,
// so drift between builds can be inspected later:
//   - compositions: one row per snapshot, surface stored as JSON
//   - composition_modules: registration order per snapshot
//   - composition_calls: calls applied to a builder of the snapshot
//
// Ordering uses the seq column (a logical clock assigned on write), never
// wall time. Queries order by seq and then id COLLATE BINARY so results
// are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
