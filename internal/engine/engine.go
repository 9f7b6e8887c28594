package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog"
	"github.com/roach88/plexsched/internal/store"
)

// DefaultLookaheadLimit is the default number of upcoming actions a cycle
// pre-stages when nothing is due.
const DefaultLookaheadLimit = 10

// ActionStore is the part of the store a cycle uses.
// Implemented by *store.Store.
type ActionStore interface {
	DueActions(ctx context.Context, today civil.Date) ([]action.Action, error)
	LookaheadActions(ctx context.Context, today civil.Date, limit int) ([]action.Action, error)
	Begin(ctx context.Context) (store.Transaction, error)
}

// RunRecorder persists the audit record of a cycle.
// Implemented by *store.Store.
type RunRecorder interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// SufficiencyFunc reports whether the catalog already holds enough unwatched
// content. When nothing is due and it returns true, the cycle ends without
// looking ahead.
type SufficiencyFunc func(ctx context.Context, sess catalog.Session) (bool, error)

// Result summarizes a finished cycle.
type Result struct {
	RunID string
	Today civil.Date

	// Applied is the number of actions whose effect was applied.
	Applied int

	// Total is the number of actions the cycle loaded for execution.
	Total int

	// Skipped is the number of actions that needed no work.
	Skipped int

	// Lookahead is true when the actions came from the lookahead query.
	Lookahead bool

	// Outcomes holds one entry per attempted action, in execution order.
	Outcomes []Outcome
}

// Engine runs scheduling cycles against one store and catalog.
//
// An Engine is not safe for concurrent Run calls; the store is assumed to be
// driven by one cycle at a time.
type Engine struct {
	store    ActionStore
	client   catalog.Client
	executor *Executor
	logger   *slog.Logger
	runIDs   RunIDGenerator
	recorder RunRecorder
	now      func() time.Time

	lookaheadLimit int
	horizonDays    int
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLookaheadLimit sets how many upcoming actions a cycle may pre-stage.
//
// Default: 10 (DefaultLookaheadLimit). Non-positive values disable lookahead.
func WithLookaheadLimit(limit int) Option {
	return func(e *Engine) {
		e.lookaheadLimit = limit
	}
}

// WithLookaheadHorizon restricts lookahead to occurrences at most days after
// today. Zero means no horizon.
func WithLookaheadHorizon(days int) Option {
	return func(e *Engine) {
		e.horizonDays = days
	}
}

// WithLogger sets the logger for cycle progress.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithRecorder records every cycle, successful or not, via r.
func WithRecorder(r RunRecorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// New creates an Engine for the given store and catalog client.
func New(s ActionStore, client catalog.Client, opts ...Option) *Engine {
	e := &Engine{
		store:          s,
		client:         client,
		logger:         slog.Default(),
		runIDs:         UUIDv7Generator{},
		now:            time.Now,
		lookaheadLimit: DefaultLookaheadLimit,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = discardLogger()
	}
	e.executor = NewExecutor(e.logger)
	return e
}

// RunCycle runs a single cycle. It is shorthand for New(...).Run.
func RunCycle(
	ctx context.Context,
	today civil.Date,
	client catalog.Client,
	s ActionStore,
	sufficient SufficiencyFunc,
	opts ...Option,
) (Result, error) {
	return New(s, client, opts...).Run(ctx, today, sufficient)
}

// Run executes one cycle as of today.
//
// It returns the Result together with any error. A *CycleAbortedError means
// an action failed after Result.Applied actions were committed. Other errors
// (store or connection failures before any action ran) are returned wrapped;
// a connection failure names the action it was needed for.
// sufficient may be nil.
func (e *Engine) Run(ctx context.Context, today civil.Date, sufficient SufficiencyFunc) (Result, error) {
	runID := e.runIDs.Generate()
	c := &cycle{
		engine: e,
		result: Result{RunID: runID, Today: today},
		logger: e.logger.With("run", runID),
	}

	started := e.now()
	c.logger.Info("cycle starting", "today", today.String())

	err := c.run(ctx, today, sufficient)
	if err != nil {
		c.logger.Error("cycle aborted",
			"applied", c.result.Applied,
			"total", c.result.Total,
			"error", err,
		)
	} else {
		c.logger.Info("cycle finished",
			"applied", c.result.Applied,
			"total", c.result.Total,
			"skipped", c.result.Skipped,
			"lookahead", c.result.Lookahead,
		)
	}

	e.record(ctx, started, c.result, err)
	return c.result, err
}

// record writes the run record. Recording failures are logged, not returned:
// the cycle's effects are already committed.
func (e *Engine) record(ctx context.Context, started time.Time, result Result, runErr error) {
	if e.recorder == nil {
		return
	}

	run := store.Run{
		ID:         result.RunID,
		StartedAt:  started,
		FinishedAt: e.now(),
		Today:      result.Today,
		Applied:    result.Applied,
		Total:      result.Total,
		Lookahead:  result.Lookahead,
		Status:     store.RunStatusOK,
	}
	if runErr != nil {
		run.Status = store.RunStatusAborted
		run.Error = runErr.Error()
		if ce, ok := AsCycleAborted(runErr); ok {
			run.FailedActionID = ce.ActionID
		}
	}

	// Record even if the cycle was cancelled.
	if err := e.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		e.logger.Warn("failed to record run", "run", run.ID, "error", err)
	}
}

// cycle holds the state of one Run.
type cycle struct {
	engine  *Engine
	result  Result
	logger  *slog.Logger
	session catalog.Session
}

func (c *cycle) run(ctx context.Context, today civil.Date, sufficient SufficiencyFunc) error {
	e := c.engine

	actions, err := e.store.DueActions(ctx, today)
	if err != nil {
		return errors.Wrap(err, "load due actions")
	}

	if len(actions) == 0 {
		c.logger.Info("nothing due")

		if sufficient != nil {
			sess, err := c.connect(ctx)
			if err != nil {
				return err
			}
			enough, err := sufficient(ctx, sess)
			if err != nil {
				return errors.Wrap(err, "sufficiency check")
			}
			if enough {
				c.logger.Info("enough unwatched content, skipping lookahead")
				return nil
			}
		}

		actions, err = c.lookahead(ctx, today)
		if err != nil {
			return err
		}
		if len(actions) == 0 {
			c.logger.Info("nothing further scheduled")
			return nil
		}
		c.result.Lookahead = true
	}

	c.result.Total = len(actions)
	c.logger.Info("executing actions", "count", len(actions), "lookahead", c.result.Lookahead)

	for _, a := range actions {
		asOf := today
		if c.result.Lookahead {
			// Pre-stage the upcoming occurrence.
			asOf, _ = a.NextAfter(today)
		}

		sess, err := c.connect(ctx)
		if err != nil {
			return errors.Wrapf(err, "action %d (%s)", a.ID, a.Name)
		}

		if err := c.execute(ctx, a, sess, asOf); err != nil {
			return err
		}
	}

	return nil
}

// lookahead loads upcoming actions, dropping those beyond the horizon.
func (c *cycle) lookahead(ctx context.Context, today civil.Date) ([]action.Action, error) {
	e := c.engine
	if e.lookaheadLimit <= 0 {
		return nil, nil
	}

	actions, err := e.store.LookaheadActions(ctx, today, e.lookaheadLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load lookahead actions")
	}
	if e.horizonDays <= 0 {
		return actions, nil
	}

	// Sorted by next occurrence, so the first one past the horizon ends it.
	horizon := today.AddDays(e.horizonDays)
	for i, a := range actions {
		if next, _ := a.NextAfter(today); next.After(horizon) {
			return actions[:i], nil
		}
	}
	return actions, nil
}

// connect opens the catalog session on first use.
func (c *cycle) connect(ctx context.Context) (catalog.Session, error) {
	if c.session != nil {
		return c.session, nil
	}

	sess, err := c.engine.client.Connect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "connect to catalog")
	}
	c.logger.Debug("catalog connected")
	c.session = sess
	return sess, nil
}

// execute runs one action inside its own transaction.
func (c *cycle) execute(ctx context.Context, a action.Action, sess catalog.Session, asOf civil.Date) error {
	e := c.engine

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return c.abort(a, errors.Wrap(err, "begin action transaction"))
	}

	outcome := e.executor.Execute(ctx, a, sess, asOf)
	c.result.Outcomes = append(c.result.Outcomes, outcome)

	switch outcome.Kind {
	case OutcomeApplied:
		if err := tx.CommitAction(ctx, a.ID, action.Applied(outcome.Occurrence)); err != nil {
			c.rollback(tx, a)
			return c.abort(a, err)
		}
		if err := tx.Commit(); err != nil {
			return c.abort(a, err)
		}
		c.result.Applied++
		c.logger.Info("action applied",
			"action", a.ID,
			"name", a.Name,
			"key", outcome.Key,
			"occurrence", outcome.Occurrence.String(),
		)
		return nil

	case OutcomeSkipped:
		c.rollback(tx, a)
		c.result.Skipped++
		c.logger.Info("action skipped",
			"action", a.ID,
			"name", a.Name,
			"reason", outcome.Reason,
		)
		return nil

	default:
		c.rollback(tx, a)
		return c.abort(a, outcome.Err)
	}
}

func (c *cycle) rollback(tx store.Transaction, a action.Action) {
	if err := tx.Rollback(); err != nil {
		c.logger.Warn("rollback failed", "action", a.ID, "error", err)
	}
}

func (c *cycle) abort(a action.Action, cause error) error {
	return &CycleAbortedError{
		ActionID:   a.ID,
		ActionName: a.Name,
		Applied:    c.result.Applied,
		Cause:      cause,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
