// Package engine runs scheduling cycles.
//
// A cycle loads the actions that are due today, or, when nothing is due,
// a bounded number of upcoming actions (the lookahead), and applies each one
// against the remote catalog in order.
//
// EXECUTION MODEL:
//
// Actions are processed one at a time, never concurrently, in ascending
// occurrence date then id order. Each action runs inside its own store
// transaction:
//   - Applied: the new state is written and the transaction committed
//     before the next action starts
//   - Skipped: the transaction is rolled back, nothing is written
//   - Failed: the transaction is rolled back and the cycle aborts with a
//     *CycleAbortedError; later actions are not attempted
//
// A failure therefore never undoes earlier successes, and re-running a cycle
// for the same day never repeats an applied effect: due-ness is re-derived
// from the stored last occurrence.
//
// The catalog is connected lazily, at most once per cycle, and the session is
// shared by every action of the cycle.
package engine
