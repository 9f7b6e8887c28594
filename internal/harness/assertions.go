package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog/catalogtest"
	"github.com/roach88/plexsched/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, formatEvent(ev))
		}
	}

	return buf.String()
}

func formatEvent(ev TraceEvent) string {
	if ev.Type == EventCycle {
		s := fmt.Sprintf("%s %s %s %s", ev.Day, ev.RunID, ev.Status, ev.Summary)
		if ev.Lookahead {
			s += " lookahead"
		}
		return s
	}
	s := fmt.Sprintf("  %s %s", ev.Outcome, ev.Action)
	if ev.Key != "" {
		s += " " + ev.Key
	}
	if ev.Occurrence != "" {
		s += " for " + ev.Occurrence
	}
	if ev.Reason != "" {
		s += " (" + ev.Reason + ")"
	}
	return s
}

// AssertionContext provides the final state assertions inspect.
type AssertionContext struct {
	Store   *store.Store
	Catalog *catalogtest.Catalog
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Store == nil || actx.Catalog == nil {
			err = fmt.Errorf("assertion[%d]: %s requires store and catalog context", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertMarked:
				err = assertMarked(result.Trace, actx.Catalog, assertion)
			case AssertMarkCount:
				err = assertMarkCount(result.Trace, actx.Catalog, assertion)
			case AssertWatched:
				err = assertWatched(actx.Catalog, assertion)
			case AssertLastOccurrence:
				err = assertLastOccurrence(actx.Ctx, actx.Store, assertion)
			case AssertRunCount:
				err = assertRunCount(actx.Ctx, actx.Store, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	return msgs
}

// assertMarked checks the exact sequence of unwatch calls, failures included.
func assertMarked(trace []TraceEvent, c *catalogtest.Catalog, assertion Assertion) error {
	marked := c.Marked()
	want := assertion.Keys
	if want == nil {
		want = []string{}
	}
	if marked == nil {
		marked = []string{}
	}
	if !slices.Equal(marked, want) {
		return &AssertionError{
			Type:     AssertMarked,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", marked),
			Trace:    trace,
		}
	}
	return nil
}

func assertMarkCount(trace []TraceEvent, c *catalogtest.Catalog, assertion Assertion) error {
	if got := c.MarkCalls(); got != assertion.Count {
		return &AssertionError{
			Type:     AssertMarkCount,
			Expected: fmt.Sprintf("%d unwatch calls", assertion.Count),
			Actual:   fmt.Sprintf("%d unwatch calls: %v", got, c.Marked()),
			Trace:    trace,
		}
	}
	return nil
}

func assertWatched(c *catalogtest.Catalog, assertion Assertion) error {
	it := c.Item(assertion.Key)
	if it == nil {
		return fmt.Errorf("watched: no catalog item with key %q", assertion.Key)
	}
	if got := it.Watched(); got != assertion.Watched {
		return &AssertionError{
			Type:     AssertWatched,
			Expected: fmt.Sprintf("%s watched = %t", assertion.Key, assertion.Watched),
			Actual:   fmt.Sprintf("%s watched = %t", assertion.Key, got),
		}
	}
	return nil
}

// assertLastOccurrence finds the action by name and compares its last
// applied occurrence.
func assertLastOccurrence(ctx context.Context, st *store.Store, assertion Assertion) error {
	actions, err := st.ListActions(ctx)
	if err != nil {
		return fmt.Errorf("last_occurrence: %w", err)
	}

	idx := slices.IndexFunc(actions, func(a action.Action) bool { return a.Name == assertion.Action })
	if idx < 0 {
		return fmt.Errorf("last_occurrence: no action named %q", assertion.Action)
	}

	got := ""
	if last := actions[idx].LastOccurrence; last != nil {
		got = last.String()
	}
	if got != assertion.Date {
		return &AssertionError{
			Type:     AssertLastOccurrence,
			Expected: fmt.Sprintf("%s last applied for %s", assertion.Action, orNever(assertion.Date)),
			Actual:   fmt.Sprintf("%s last applied for %s", assertion.Action, orNever(got)),
		}
	}
	return nil
}

func assertRunCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	// One more than expected proves there are no extra runs.
	runs, err := st.ListRuns(ctx, assertion.Count+1)
	if err != nil {
		return fmt.Errorf("run_count: %w", err)
	}
	if len(runs) != assertion.Count {
		return &AssertionError{
			Type:     AssertRunCount,
			Expected: fmt.Sprintf("%d recorded runs", assertion.Count),
			Actual:   fmt.Sprintf("%d recorded runs", len(runs)),
		}
	}
	return nil
}

func orNever(date string) string {
	if date == "" {
		return "never"
	}
	return date
}
