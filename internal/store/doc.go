// Package store keeps the generation manifest in SQLite.
//
// Every generation pass is recorded as a run: the records it scanned and
// the artifacts it produced, each with its content digest. The manifest
// lets a pass skip files whose content did not change, remove files an
// earlier pass produced that are no longer generated, and answer history
// queries.
//
// # Ordering
//
// Runs are ordered by seq, a logical counter assigned at insert time.
// Run IDs are UUIDv7 and only identify a run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Digests are computed by package ir with domain-separated SHA-256.
package store
