package recurrence

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"
)

// ParseDate parses an ISO-8601 calendar date ("2016-06-30").
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, errors.Wrapf(err, "parse date %q", s)
	}
	return d, nil
}

// DateOf returns the civil date of t in t's location.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

// AddYears shifts d by n years, clamping the day to the length of the
// target month.
func AddYears(d civil.Date, n int) civil.Date {
	year := d.Year + n
	day := d.Day
	if last := daysIn(d.Month, year); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: d.Month, Day: day}
}

// MaxDate returns the later of a and b.
func MaxDate(a, b civil.Date) civil.Date {
	if a.After(b) {
		return a
	}
	return b
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
