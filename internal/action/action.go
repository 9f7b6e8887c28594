// Package action defines the scheduled action entity: a target in the remote
// catalog, the effect to apply to it and the rule deciding when.
//
// Only the store creates Actions. Everything except State is fixed at
// creation; State records the last occurrence whose effect was applied.
package action

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/roach88/plexsched/internal/recurrence"
)

// Action is a persisted scheduled action.
type Action struct {
	// ID is assigned by the store and never reused.
	ID int64

	// Name is a human label. It is never used for matching.
	Name string

	// Section is the catalog partition (library section title) holding the target.
	Section string

	// Selector is resolved by the catalog to exactly one item.
	Selector Selector

	// Effect is applied to the resolved item when an occurrence is due.
	Effect Effect

	// Rule decides when the action recurs.
	Rule recurrence.Rule

	State

	// CreatedAt is when the store inserted the action.
	CreatedAt time.Time
}

// State is the mutable part of an Action.
type State struct {
	// LastOccurrence is the occurrence whose effect was last applied.
	// Nil until the first successful run.
	LastOccurrence *civil.Date

	// Completed marks that the effect for LastOccurrence has been applied.
	Completed bool
}

// Applied returns the state recorded after the effect for occurrence
// has been applied.
func Applied(occurrence civil.Date) State {
	return State{LastOccurrence: &occurrence, Completed: true}
}

// IsDue reports whether the action has an unsatisfied occurrence on or
// before today. Eligibility is always derived from the rule and the last
// occurrence, never from a stored "next due" field.
func (a Action) IsDue(today civil.Date) bool {
	return a.Rule.IsDue(today, a.LastOccurrence)
}

// Pending returns the date the action is (or will next be) due.
func (a Action) Pending() (civil.Date, bool) {
	return a.Rule.Pending(a.LastOccurrence)
}

// NextAfter returns the first occurrence after today that has not been
// satisfied yet.
func (a Action) NextAfter(today civil.Date) (civil.Date, bool) {
	return a.Rule.NextAfter(today, a.LastOccurrence)
}

// Target renders "section/selector" for logs and messages.
func (a Action) Target() string {
	return a.Section + "/" + a.Selector.String()
}
