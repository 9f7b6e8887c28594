// Package recurrence defines the rules that decide when a scheduled action
// recurs.
//
// A Rule is a tagged variant over three kinds:
//
//   - annual: the anchor date shifted by whole multiples of N years
//   - periodic_days: the anchor date shifted by whole multiples of N days
//   - calendar: days on or after the anchor matched by a cron expression
//
// Occurrences are always derived from the anchor, never accumulated from the
// previous occurrence, so a rule cannot drift. The last completed occurrence
// is authoritative for eligibility; the anchor only provides the phase.
//
// All arithmetic is done on civil dates. Year shifts that land on a day the
// target month does not have (Feb 29 in a common year) clamp to the last day
// of that month.
package recurrence
