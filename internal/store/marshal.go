package store

import (
	"database/sql"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/recurrence"
)

// actionColumns is the column list scanned by scanAction, in order.
const actionColumns = `id, name, section, target_selector, effect, rule_kind, anchor_date,
	every, expression, last_occurrence_date, completed, created_at`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// marshalDate converts a civil date to its TEXT column form (YYYY-MM-DD),
// which sorts lexicographically in date order.
func marshalDate(d civil.Date) string {
	return d.String()
}

// marshalNullDate converts an optional date to a nullable column value.
func marshalNullDate(d *civil.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// unmarshalNullDate converts a nullable column value to an optional date.
func unmarshalNullDate(ns sql.NullString) (*civil.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := civil.ParseDate(ns.String)
	if err != nil {
		return nil, errors.Wrapf(err, "parse date %q", ns.String)
	}
	return &d, nil
}

// scanAction reads one row selected with actionColumns.
func scanAction(row rowScanner) (action.Action, error) {
	var (
		a                       action.Action
		selector, effect, kind  string
		anchor, expr, createdAt string
		every                   int
		last                    sql.NullString
		completed               int
	)

	err := row.Scan(&a.ID, &a.Name, &a.Section, &selector, &effect, &kind, &anchor,
		&every, &expr, &last, &completed, &createdAt)
	if err != nil {
		return action.Action{}, errors.Wrap(err, "scan action")
	}

	if a.Selector, err = action.ParseSelector(selector); err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d", a.ID)
	}
	if a.Effect, err = action.ParseEffect(effect); err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d", a.ID)
	}

	anchorDate, err := civil.ParseDate(anchor)
	if err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d: anchor", a.ID)
	}
	if a.Rule, err = recurrence.Parse(recurrence.Kind(kind), anchorDate, every, expr); err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d", a.ID)
	}

	if a.LastOccurrence, err = unmarshalNullDate(last); err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d: last occurrence", a.ID)
	}
	a.Completed = completed != 0

	if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return action.Action{}, errors.Wrapf(err, "action %d: created_at", a.ID)
	}

	return a, nil
}

// ruleColumns splits a rule into its stored columns.
func ruleColumns(r recurrence.Rule) (kind, anchor string, every int, expr string) {
	return string(r.Kind()), marshalDate(r.Anchor()), r.Every(), r.Expression()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
