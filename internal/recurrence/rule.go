package recurrence

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"
)

// Kind identifies the variant of a Rule.
type Kind string

const (
	// KindAnnual recurs every N years from the anchor.
	KindAnnual Kind = "annual"

	// KindPeriodicDays recurs every N days from the anchor.
	KindPeriodicDays Kind = "periodic_days"

	// KindCalendar recurs on the days a cron expression matches.
	KindCalendar Kind = "calendar"
)

// Kinds lists every supported rule kind.
var Kinds = []Kind{KindAnnual, KindPeriodicDays, KindCalendar}

// calendarParser accepts the standard five fields plus descriptors such as
// "@monthly". Hour and minute fields are accepted but only the day matters.
// "@every" parses but is rejected by NewCalendar.
var calendarParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Rule encodes how often and from when an action recurs.
//
// The zero Rule is invalid; use NewAnnual, NewPeriodicDays, NewCalendar or
// Parse. Rules are immutable values and safe to copy.
type Rule struct {
	kind   Kind
	anchor civil.Date
	every  int
	expr   string
	sched  cron.Schedule
}

// NewAnnual returns a rule recurring every everyYears years from anchor.
func NewAnnual(anchor civil.Date, everyYears int) (Rule, error) {
	return newPeriodic(KindAnnual, anchor, everyYears)
}

// NewPeriodicDays returns a rule recurring every everyDays days from anchor.
func NewPeriodicDays(anchor civil.Date, everyDays int) (Rule, error) {
	return newPeriodic(KindPeriodicDays, anchor, everyDays)
}

func newPeriodic(kind Kind, anchor civil.Date, every int) (Rule, error) {
	if !anchor.IsValid() {
		return Rule{}, configErrorf("anchor", "%v is not a valid date", anchor)
	}
	if every < 1 {
		return Rule{}, configErrorf("every", "period must be at least 1, got %d", every)
	}
	return Rule{kind: kind, anchor: anchor, every: every}, nil
}

// NewCalendar returns a rule recurring on every day on or after anchor that
// expr matches. The expression must fire at least once after the anchor.
func NewCalendar(anchor civil.Date, expr string) (Rule, error) {
	if !anchor.IsValid() {
		return Rule{}, configErrorf("anchor", "%v is not a valid date", anchor)
	}
	sched, err := calendarParser.Parse(expr)
	if err != nil {
		return Rule{}, configErrorf("expression", "%q: %v", expr, err)
	}
	// @every schedules count from the query time, not the anchor.
	if _, ok := sched.(*cron.SpecSchedule); !ok {
		return Rule{}, configErrorf("expression", "%q is not a calendar schedule", expr)
	}
	r := Rule{kind: KindCalendar, anchor: anchor, expr: expr, sched: sched}
	if _, ok := r.calendarOnOrAfter(anchor); !ok {
		return Rule{}, configErrorf("expression", "%q never fires after %s", expr, anchor)
	}
	return r, nil
}

// Parse builds a rule from its stored representation. every is ignored for
// calendar rules and expr is ignored for the others.
func Parse(kind Kind, anchor civil.Date, every int, expr string) (Rule, error) {
	switch kind {
	case KindAnnual:
		return NewAnnual(anchor, every)
	case KindPeriodicDays:
		return NewPeriodicDays(anchor, every)
	case KindCalendar:
		return NewCalendar(anchor, expr)
	default:
		return Rule{}, configErrorf("kind", "unknown rule kind %q", kind)
	}
}

// Kind returns the rule variant.
func (r Rule) Kind() Kind { return r.kind }

// Anchor returns the phase reference date.
func (r Rule) Anchor() civil.Date { return r.anchor }

// Every returns the period in years or days. Zero for calendar rules.
func (r Rule) Every() int { return r.every }

// Expression returns the cron expression of a calendar rule.
func (r Rule) Expression() string { return r.expr }

// IsZero reports whether r was never constructed.
func (r Rule) IsZero() bool { return r.kind == "" }

// Pending returns the first occurrence not yet satisfied: the first
// occurrence on or after the anchor when last is nil, otherwise the first
// occurrence strictly after last. ok is false if the rule never fires again.
func (r Rule) Pending(last *civil.Date) (civil.Date, bool) {
	switch r.kind {
	case KindAnnual, KindPeriodicDays:
		if last == nil {
			return r.anchor, true
		}
		return r.at(r.indexAfter(*last)), true
	case KindCalendar:
		from := r.anchor
		if last != nil {
			from = MaxDate(from, last.AddDays(1))
		}
		return r.calendarOnOrAfter(from)
	default:
		return civil.Date{}, false
	}
}

// IsDue reports whether an occurrence later than last (or the first
// occurrence, if last is nil) falls on or before today.
func (r Rule) IsDue(today civil.Date, last *civil.Date) bool {
	pending, ok := r.Pending(last)
	return ok && !pending.After(today)
}

// OccurrenceOnOrBefore returns the latest occurrence d with last < d <= today.
// Occurrences missed between cycles collapse into this one. ok is false when
// no such occurrence exists, i.e. when the rule is not due.
func (r Rule) OccurrenceOnOrBefore(today civil.Date, last *civil.Date) (civil.Date, bool) {
	pending, ok := r.Pending(last)
	if !ok || pending.After(today) {
		return civil.Date{}, false
	}

	switch r.kind {
	case KindAnnual, KindPeriodicDays:
		return r.at(r.indexAfter(today) - 1), true
	case KindCalendar:
		d := pending
		for {
			next, ok := r.calendarOnOrAfter(d.AddDays(1))
			if !ok || next.After(today) {
				return d, true
			}
			d = next
		}
	default:
		return civil.Date{}, false
	}
}

// NextAfter returns the first occurrence strictly after both today and last.
// Used to look ahead when nothing is currently due.
func (r Rule) NextAfter(today civil.Date, last *civil.Date) (civil.Date, bool) {
	ref := today
	if last != nil {
		ref = MaxDate(ref, *last)
	}

	switch r.kind {
	case KindAnnual, KindPeriodicDays:
		return r.at(r.indexAfter(ref)), true
	case KindCalendar:
		return r.calendarOnOrAfter(MaxDate(r.anchor, ref.AddDays(1)))
	default:
		return civil.Date{}, false
	}
}

// String renders the rule for humans.
func (r Rule) String() string {
	switch r.kind {
	case KindAnnual:
		if r.every == 1 {
			return fmt.Sprintf("every year from %s", r.anchor)
		}
		return fmt.Sprintf("every %d years from %s", r.every, r.anchor)
	case KindPeriodicDays:
		if r.every == 1 {
			return fmt.Sprintf("every day from %s", r.anchor)
		}
		return fmt.Sprintf("every %d days from %s", r.every, r.anchor)
	case KindCalendar:
		return fmt.Sprintf("on %q from %s", r.expr, r.anchor)
	default:
		return "invalid rule"
	}
}

// at returns the k-th occurrence of a periodic rule.
func (r Rule) at(k int) civil.Date {
	if r.kind == KindAnnual {
		return AddYears(r.anchor, k*r.every)
	}
	return r.anchor.AddDays(k * r.every)
}

// indexAfter returns the smallest k such that at(k) is strictly after d.
// Occurrences are strictly increasing in k, so the estimate only ever needs
// to move forward.
func (r Rule) indexAfter(d civil.Date) int {
	if d.Before(r.anchor) {
		return 0
	}

	var k int
	if r.kind == KindAnnual {
		k = (d.Year - r.anchor.Year) / r.every
	} else {
		k = d.DaysSince(r.anchor) / r.every
	}
	for !r.at(k).After(d) {
		k++
	}
	return k
}

// calendarOnOrAfter returns the first day on or after d matched by the
// schedule. cron gives up after five years without a match.
func (r Rule) calendarOnOrAfter(d civil.Date) (civil.Date, bool) {
	start := d.In(time.UTC).Add(-time.Second)
	next := r.sched.Next(start)
	if next.IsZero() {
		return civil.Date{}, false
	}
	return civil.DateOf(next), true
}
