package engine

import (
	"context"
	"log/slog"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog"
)

// OutcomeKind classifies the result of executing one action.
type OutcomeKind int

const (
	// OutcomeApplied means the effect was applied for Occurrence.
	OutcomeApplied OutcomeKind = iota + 1

	// OutcomeSkipped means nothing was done; Reason says why.
	OutcomeSkipped

	// OutcomeFailed means resolution or the effect failed; Err says how.
	OutcomeFailed
)

// String returns the lowercase outcome name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of Executor.Execute.
type Outcome struct {
	Kind OutcomeKind

	// ActionID and ActionName identify the executed action.
	ActionID   int64
	ActionName string

	// Occurrence is the occurrence satisfied by an Applied outcome.
	Occurrence civil.Date

	// Key is the catalog key the effect was applied to, if any.
	Key string

	// Reason explains a Skipped outcome.
	Reason string

	// Err is the cause of a Failed outcome.
	Err error
}

// Skip reasons.
const (
	ReasonNoLongerDue    = "no longer due"
	ReasonNothingWatched = "no watched episode to unwatch"
)

// Executor applies a single action to the catalog.
//
// Execute makes at most one mutating catalog call, and none unless the
// outcome is Applied.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Executor{logger: logger}
}

// Execute applies a as of the given date using sess.
//
// Steps:
//  1. Re-check due-ness as of asOf; a stale snapshot yields Skipped.
//  2. Resolve the target; any error, including a cancelled context, fails.
//  3. Apply the effect with one mutating call.
//  4. Report the latest occurrence on or before asOf as Applied.
func (x *Executor) Execute(ctx context.Context, a action.Action, sess catalog.Session, asOf civil.Date) Outcome {
	out := Outcome{ActionID: a.ID, ActionName: a.Name}

	if !a.IsDue(asOf) {
		out.Kind = OutcomeSkipped
		out.Reason = ReasonNoLongerDue
		return out
	}

	item, err := sess.Resolve(ctx, a.Section, a.Selector.String())
	if err != nil {
		out.Kind = OutcomeFailed
		out.Err = errors.Wrapf(err, "resolve %s", a.Target())
		return out
	}
	x.logger.Debug("target resolved",
		"action", a.ID,
		"key", item.Key(),
		"title", item.Title(),
	)

	key, skip, err := x.applyEffect(ctx, a.Effect, item)
	switch {
	case err != nil:
		out.Kind = OutcomeFailed
		out.Key = key
		out.Err = err
		return out
	case skip != "":
		out.Kind = OutcomeSkipped
		out.Reason = skip
		return out
	}

	occurrence, ok := a.Rule.OccurrenceOnOrBefore(asOf, a.LastOccurrence)
	if !ok {
		// IsDue held above, so an occurrence exists.
		out.Kind = OutcomeFailed
		out.Key = key
		out.Err = errors.AssertionFailedf("action %d due as of %s without an occurrence", a.ID, asOf)
		return out
	}

	out.Kind = OutcomeApplied
	out.Key = key
	out.Occurrence = occurrence
	return out
}

// applyEffect dispatches on the effect variant. It returns the key that was
// mutated, a non-empty skip reason when nothing needed doing, or an error.
func (x *Executor) applyEffect(ctx context.Context, effect action.Effect, item catalog.Item) (string, string, error) {
	switch effect {
	case action.EffectMarkUnwatched:
		if err := item.MarkUnwatched(ctx); err != nil {
			return item.Key(), "", errors.Wrapf(err, "mark %s unwatched", item.Key())
		}
		return item.Key(), "", nil

	case action.EffectUnwatchNextEpisode:
		series, ok := item.(catalog.Series)
		if !ok {
			return "", "", errors.Newf("%s (%s) has no episodes", item.Title(), item.Key())
		}
		episodes, err := series.Episodes(ctx)
		if err != nil {
			return "", "", errors.Wrapf(err, "list episodes of %s", item.Key())
		}
		for _, ep := range episodes {
			if !ep.Watched() {
				continue
			}
			if err := ep.MarkUnwatched(ctx); err != nil {
				return ep.Key(), "", errors.Wrapf(err, "mark %s unwatched", ep.Key())
			}
			return ep.Key(), "", nil
		}
		return "", ReasonNothingWatched, nil

	default:
		return "", "", errors.Newf("unknown effect %q", effect)
	}
}
