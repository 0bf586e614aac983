// Package store provides SQLite-backed durable storage for check runs.
//
// The store keeps:
//   - Runs: one record per check of a log source
//   - Checkpoints: the latest validator states of a run, one row per validator
//   - Findings: every reported failure of a run, append-only
//
// # Critical Patterns
//
// Atomic Checkpoints
//   - SaveCheckpoint replaces all rows of a run in one transaction
//   - LoadCheckpoint never observes a partially written checkpoint
//
// Deterministic Query Results
//   - Runs: ORDER BY id (UUIDv7, so creation order)
//   - Findings: ORDER BY line ASC, seq ASC
//   - Wall-clock columns are informational only
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
