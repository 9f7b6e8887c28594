package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/catalog/catalogtest"
	"github.com/roach88/plexsched/internal/engine"
	"github.com/roach88/plexsched/internal/store"
)

// DefaultShowsSection is the section checked for unwatched content when
// Settings.ShowsSection is empty.
const DefaultShowsSection = "TV Shows"

// Harness holds the state shared by the days of one scenario.
type Harness struct {
	catalog    *catalogtest.Catalog
	engine     *engine.Engine
	sufficient engine.SufficiencyFunc
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a fresh in-memory database and catalog
//  2. Create the scenario's actions
//  3. Run one cycle per day, checking each day's expectations
//  4. Evaluate assertions against the trace and final state
//
// A returned error means the scenario could not be executed; failed
// expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-memory store")
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for _, day := range scenario.Days {
		if err := h.runDay(ctx, day, result); err != nil {
			return nil, errors.Wrapf(err, "day %s", day.Today)
		}
	}

	actx := &AssertionContext{
		Store:   st,
		Catalog: h.catalog,
		Ctx:     ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario) (*Harness, error) {
	fake := catalogtest.New()
	for _, item := range scenario.Catalog {
		if item.Episodes != nil {
			fake.AddShow(item.Section, item.Title, item.Episodes...)
			continue
		}
		fake.AddMovie(item.Section, item.Title, item.Year, item.Watched)
	}

	for i, entry := range scenario.Actions {
		def, err := entry.Definition()
		if err != nil {
			return nil, errors.Wrapf(err, "actions[%d]", i)
		}
		if _, err := st.CreateAction(ctx, def); err != nil {
			return nil, errors.Wrapf(err, "create action %q", entry.Name)
		}
	}

	runIDs := make([]string, len(scenario.Days))
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("run-%d", i+1)
	}

	settings := scenario.Settings
	limit := engine.DefaultLookaheadLimit
	if settings.LookaheadLimit != nil {
		limit = *settings.LookaheadLimit
	}
	shows := settings.ShowsSection
	if shows == "" {
		shows = DefaultShowsSection
	}

	// Suppress logs; the trace carries what scenarios assert on.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := engine.New(st, fake,
		engine.WithLogger(logger),
		engine.WithRecorder(st),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(runIDs...)),
		engine.WithLookaheadLimit(limit),
		engine.WithLookaheadHorizon(settings.HorizonDays),
	)

	return &Harness{
		catalog:    fake,
		engine:     eng,
		sufficient: engine.UnwatchedHoursAbove(shows, settings.SufficiencyHours, logger),
	}, nil
}

// runDay applies the day's catalog changes, runs one cycle and traces it.
func (h *Harness) runDay(ctx context.Context, day Day, result *Result) error {
	today, err := civil.ParseDate(day.Today)
	if err != nil {
		return err
	}
	if err := h.prepare(day); err != nil {
		return err
	}

	res, runErr := h.engine.Run(ctx, today, h.sufficient)

	status := string(store.RunStatusOK)
	switch {
	case engine.IsCycleAborted(runErr):
		status = string(store.RunStatusAborted)
	case runErr != nil:
		status = "failed"
	}

	result.addEvent(TraceEvent{
		Type:      EventCycle,
		Day:       day.Today,
		RunID:     res.RunID,
		Summary:   fmt.Sprintf("%d/%d", res.Applied, res.Total),
		Lookahead: res.Lookahead,
		Status:    status,
	})
	for _, o := range res.Outcomes {
		ev := TraceEvent{
			Type:    EventOutcome,
			Day:     day.Today,
			Action:  o.ActionName,
			Outcome: o.Kind.String(),
			Key:     o.Key,
			Reason:  o.Reason,
		}
		if o.Kind == engine.OutcomeApplied {
			ev.Occurrence = o.Occurrence.String()
		}
		result.addEvent(ev)
	}

	if day.Expect != nil {
		for _, msg := range checkExpect(day.Today, day.Expect, res, runErr) {
			result.AddError(msg)
		}
	} else if runErr != nil {
		result.AddError(fmt.Sprintf("day %s: unexpected error: %v", day.Today, runErr))
	}

	return nil
}

// prepare applies the catalog changes that happen before the day's cycle.
func (h *Harness) prepare(day Day) error {
	item := func(key string) (*catalogtest.Item, error) {
		it := h.catalog.Item(key)
		if it == nil {
			return nil, errors.Newf("no catalog item with key %q", key)
		}
		return it, nil
	}

	for _, key := range day.Watch {
		it, err := item(key)
		if err != nil {
			return err
		}
		it.SetWatched(true)
	}
	for _, key := range day.Recover {
		it, err := item(key)
		if err != nil {
			return err
		}
		it.FailWith(nil)
	}
	for key, msg := range day.Fail {
		it, err := item(key)
		if err != nil {
			return err
		}
		it.FailWith(errors.New(msg))
	}
	for section, hours := range day.UnwatchedHours {
		h.catalog.SetUnwatchedHours(section, hours)
	}

	h.catalog.ConnectErr = nil
	if day.Unreachable {
		h.catalog.ConnectErr = errors.New("connection refused")
	}
	return nil
}

// checkExpect compares a cycle against the day's expectations.
func checkExpect(day string, want *Expect, res engine.Result, runErr error) []string {
	var msgs []string
	failf := func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf("day %s: ", day)+fmt.Sprintf(format, args...))
	}

	if want.Applied != nil && res.Applied != *want.Applied {
		failf("applied = %d, want %d", res.Applied, *want.Applied)
	}
	if want.Total != nil && res.Total != *want.Total {
		failf("total = %d, want %d", res.Total, *want.Total)
	}
	if want.Skipped != nil && res.Skipped != *want.Skipped {
		failf("skipped = %d, want %d", res.Skipped, *want.Skipped)
	}
	if want.Lookahead != nil && res.Lookahead != *want.Lookahead {
		failf("lookahead = %t, want %t", res.Lookahead, *want.Lookahead)
	}

	aborted := engine.IsCycleAborted(runErr)
	if want.Aborted != aborted {
		failf("aborted = %t, want %t (error: %v)", aborted, want.Aborted, runErr)
	}

	wantErr := want.Aborted || want.Error != ""
	switch {
	case runErr != nil && !wantErr:
		failf("unexpected error: %v", runErr)
	case runErr == nil && wantErr:
		failf("expected the cycle to fail")
	case runErr != nil && want.Error != "" && !strings.Contains(runErr.Error(), want.Error):
		failf("error %q does not contain %q", runErr.Error(), want.Error)
	}

	return msgs
}
