package store

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
)

// ErrNotFound is returned when an action or run does not exist.
var ErrNotFound = errors.New("not found")

// GetAction returns the action with the given id, or ErrNotFound.
func (s *Store) GetAction(ctx context.Context, id int64) (action.Action, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM scheduled_actions
		WHERE id = ?
	`, id)

	a, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return action.Action{}, errors.Wrapf(ErrNotFound, "action %d", id)
	}
	if err != nil {
		return action.Action{}, err
	}
	return a, nil
}

// ListActions returns every action ordered by id.
//
// Returns an empty slice (not nil) if there are no actions.
func (s *Store) ListActions(ctx context.Context) ([]action.Action, error) {
	return s.queryActions(ctx, `
		SELECT `+actionColumns+`
		FROM scheduled_actions
		ORDER BY id ASC
	`)
}

// DueActions returns every action with an unsatisfied occurrence on or
// before today, ordered by that occurrence date ascending, then id.
//
// The result is a snapshot; no locks are held after it returns.
func (s *Store) DueActions(ctx context.Context, today civil.Date) ([]action.Action, error) {
	// An anchor after today can never be due, so SQL can discard those rows.
	candidates, err := s.queryActions(ctx, `
		SELECT `+actionColumns+`
		FROM scheduled_actions
		WHERE anchor_date <= ?
		ORDER BY id ASC
	`, marshalDate(today))
	if err != nil {
		return nil, errors.Wrap(err, "due actions")
	}

	dated := make([]datedAction, 0, len(candidates))
	for _, a := range candidates {
		if !a.IsDue(today) {
			continue
		}
		pending, _ := a.Pending()
		dated = append(dated, datedAction{Action: a, date: pending})
	}

	return sortByDate(dated), nil
}

// LookaheadActions returns up to limit lookahead-eligible actions that are
// not due today, ordered by their next occurrence date ascending, then id.
// Only episode effects are eligible. Actions already applied for today or a
// later date are omitted, so at most one occurrence is pre-staged at a time,
// as are actions whose rule never fires again. limit must be positive.
func (s *Store) LookaheadActions(ctx context.Context, today civil.Date, limit int) ([]action.Action, error) {
	if limit <= 0 {
		return nil, errors.Newf("lookahead limit must be positive, got %d", limit)
	}

	candidates, err := s.queryActions(ctx, `
		SELECT `+actionColumns+`
		FROM scheduled_actions
		WHERE effect = ?
		ORDER BY id ASC
	`, string(action.EffectUnwatchNextEpisode))
	if err != nil {
		return nil, errors.Wrap(err, "lookahead actions")
	}

	dated := make([]datedAction, 0, len(candidates))
	for _, a := range candidates {
		if a.IsDue(today) {
			continue
		}
		if a.LastOccurrence != nil && !a.LastOccurrence.Before(today) {
			continue
		}
		next, ok := a.NextAfter(today)
		if !ok {
			continue
		}
		dated = append(dated, datedAction{Action: a, date: next})
	}

	sorted := sortByDate(dated)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// ListRuns returns the most recent cycle runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, errors.Newf("run limit must be positive, got %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, today, applied, total, lookahead, status,
		       failed_action_id, error
		FROM cycle_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run                          Run
			startedAt, finishedAt, today string
			lookahead                    int
			status                       string
			failed                       sql.NullInt64
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &today, &run.Applied, &run.Total,
			&lookahead, &status, &failed, &run.Error); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}

		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, errors.Wrapf(err, "run %s: started_at", run.ID)
		}
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, errors.Wrapf(err, "run %s: finished_at", run.ID)
		}
		if run.Today, err = civil.ParseDate(today); err != nil {
			return nil, errors.Wrapf(err, "run %s: today", run.ID)
		}
		run.Lookahead = lookahead != 0
		run.Status = RunStatus(status)
		run.FailedActionID = failed.Int64
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return runs, nil
}

// queryActions runs query and scans every row as an action.
func (s *Store) queryActions(ctx context.Context, query string, args ...any) ([]action.Action, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query actions")
	}
	defer rows.Close()

	actions := []action.Action{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate actions")
	}
	return actions, nil
}

// datedAction pairs an action with the date it is ordered by.
type datedAction struct {
	action.Action
	date civil.Date
}

// sortByDate orders by date ascending, then id ascending.
func sortByDate(dated []datedAction) []action.Action {
	sort.SliceStable(dated, func(i, j int) bool {
		if dated[i].date != dated[j].date {
			return dated[i].date.Before(dated[j].date)
		}
		return dated[i].ID < dated[j].ID
	})

	out := make([]action.Action, len(dated))
	for i, d := range dated {
		out[i] = d.Action
	}
	return out
}
