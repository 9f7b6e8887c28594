package engine

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock supplies the date a cycle runs as.
//
// Cycles never read the wall clock themselves; the invoker picks "today",
// which keeps runs reproducible and lets operators replay a past date.
type Clock interface {
	Today() civil.Date
}

// SystemClock reports the current date in Location (local time if nil).
type SystemClock struct {
	Location *time.Location
}

// Today implements Clock.
func (c SystemClock) Today() civil.Date {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return civil.DateOf(time.Now().In(loc))
}

// FixedClock always reports the same date. Used for --today and tests.
type FixedClock civil.Date

// Today implements Clock.
func (c FixedClock) Today() civil.Date {
	return civil.Date(c)
}
