// Package store provides SQLite-backed persistence for rgraph snapshots.
//
// Two tables are kept:
//   - instances: the last snapshot of every entity, relation and flow,
//     keyed by kind and instance id string and upserted on every write
//   - transitions: an append-only journal of behaviour state changes
//
// # Ordering
//
// All ordering uses seq INTEGER (a logical clock), never timestamps.
// Reads are ORDER BY seq ASC, key ASC COLLATE BINARY so repeated runs
// produce identical results.
//
// # Content hashes
//
// Properties are stored as canonical JSON. The hash column is
// value.Hash(value.DomainProperties, properties), so two snapshots with
// equal values have equal hashes regardless of write order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
