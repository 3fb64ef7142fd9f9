// Package store provides a SQLite-backed archive of compilations.
//
// The archive records:
//   - Pallets: emitted documents, keyed by their content-addressed ID
//   - Pallet packages: the import key and package hash of every unit
//   - Compilations: one row per compile attempt, successful or not
//
// # Ordering
//
// Compilations are ordered by seq, a logical counter assigned on insert,
// never by timestamp. Queries use ORDER BY seq ASC, id ASC COLLATE BINARY so
// results are identical across runs.
//
// # Idempotency
//
// Pallets are content-addressed: archiving the same document twice stores it
// once and both compilations point at the same row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
