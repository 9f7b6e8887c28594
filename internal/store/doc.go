// Package store provides SQLite-backed durable storage for scheduled actions.
//
// The store owns every Action. It is the only place actions are created, and
// after creation only their State (last occurrence, completed) may change; a
// trigger rejects updates to any other column.
//
// # Due-ness
//
// The store keeps no "next due" column. DueActions and LookaheadActions
// load the candidate rows and re-derive eligibility from each action's rule
// and last occurrence, so the stored state cannot drift from the rule.
//
// # Deterministic ordering
//
// All action queries return results ordered by occurrence date ascending,
// then id ascending. Re-running an interrupted cycle therefore visits
// actions in the same relative order.
//
// # Transactions
//
// Begin opens a transaction scoped to a single action. CommitAction writes
// the new State inside it; nothing is visible until Commit, and Rollback
// discards it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
