package store

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
)

// CreateAction validates def and inserts it as a new action with an empty
// State. This is the only way actions come into existence; it is used by
// bootstrap, import and add, never by a scheduling cycle.
func (s *Store) CreateAction(ctx context.Context, def action.Definition) (action.Action, error) {
	if err := def.Validate(); err != nil {
		return action.Action{}, errors.Wrap(err, "create action")
	}

	kind, anchor, every, expr := ruleColumns(def.Rule)
	createdAt := s.now().UTC().Truncate(time.Second)

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions
		(name, section, target_selector, effect, rule_kind, anchor_date, every, expression, completed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		def.Name,
		def.Section,
		def.Selector.String(),
		string(def.Effect),
		kind,
		anchor,
		every,
		expr,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return action.Action{}, errors.Wrap(err, "create action")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return action.Action{}, errors.Wrap(err, "create action: last insert id")
	}

	return action.Action{
		ID:        id,
		Name:      def.Name,
		Section:   def.Section,
		Selector:  def.Selector,
		Effect:    def.Effect,
		Rule:      def.Rule,
		CreatedAt: createdAt,
	}, nil
}

// RunStatus is the outcome of a recorded cycle.
type RunStatus string

const (
	RunStatusOK      RunStatus = "ok"
	RunStatusAborted RunStatus = "aborted"
)

// Run is the audit record of one scheduling cycle.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	Today          civil.Date
	Applied        int
	Total          int
	Lookahead      bool
	Status         RunStatus
	FailedActionID int64
	Error          string
}

// RecordRun inserts a cycle run record. Recording the same run id twice is
// an error.
func (s *Store) RecordRun(ctx context.Context, run Run) error {
	var failed any
	if run.FailedActionID != 0 {
		failed = run.FailedActionID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_runs
		(id, started_at, finished_at, today, applied, total, lookahead, status, failed_action_id, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		marshalDate(run.Today),
		run.Applied,
		run.Total,
		boolToInt(run.Lookahead),
		string(run.Status),
		failed,
		run.Error,
	)
	if err != nil {
		return errors.Wrap(err, "record run")
	}
	return nil
}
