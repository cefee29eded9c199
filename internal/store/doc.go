// Package store provides SQLite-backed storage for compiled query plans
// and the rewrite traces that produced them.
//
// The store holds two tables:
//   - compilations: one row per compiled query; the rendered plan is kept
//     zstd-compressed next to its content hash
//   - rewrites: the rule firings of a compilation, keyed by logical seq
//
// # Ordering
//
// All listing queries use ORDER BY seq ASC, id ASC COLLATE BINARY so
// results are identical across runs. seq comes from the engine's logical
// clock, never from wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: rewrites are deleted with their compilation
package store
