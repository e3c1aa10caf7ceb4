// Package store provides SQLite-backed durable storage for the cycle event log.
//
// The database holds three tables:
//   - events: the append-only log, UNIQUE(partition_id, sequence_number)
//   - snapshots: one immutable aggregation per completed partition
//   - legacy_matches: read-only rows of the pre-log match table
//
// # Invariants
//
// Events are never updated or deleted. Within a partition the sequence numbers
// form exactly {1..N}; the store enforces uniqueness and the sequence
// allocator supplies contiguity.
//
// Snapshots are create-once. PutSnapshot never overwrites an existing row.
//
// All times are stored as Unix milliseconds (UTC). All event reads are
// ordered by sequence_number ASC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
