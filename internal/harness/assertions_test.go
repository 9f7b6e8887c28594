package harness

import (
	"context"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/catalog/catalogtest"
	"github.com/roach88/plexsched/internal/recurrence"
	"github.com/roach88/plexsched/internal/store"
)

func newAssertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	rule, err := recurrence.NewAnnual(civil.Date{Year: 2016, Month: 6, Day: 30}, 1)
	require.NoError(t, err)
	_, err = st.CreateAction(context.Background(), action.Definition{
		Name:     "Independence Day",
		Section:  "Movies",
		Selector: action.MustParseSelector("Independence Day (1996)"),
		Effect:   action.EffectMarkUnwatched,
		Rule:     rule,
	})
	require.NoError(t, err)

	fake := catalogtest.New()
	fake.AddMovie("Movies", "Independence Day", 1996, true)
	fake.AddShow("TV Shows", "Plebs", true, false)

	return &AssertionContext{Store: st, Catalog: fake, Ctx: context.Background()}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	actx := newAssertionContext(t)

	msgs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertMarked},
		{Type: AssertMarkCount, Count: 0},
		{Type: AssertWatched, Key: "1001", Watched: true},
		{Type: AssertWatched, Key: "1002/e02", Watched: false},
		{Type: AssertWatched, Key: "1002", Watched: false},
		{Type: AssertLastOccurrence, Action: "Independence Day"},
		{Type: AssertRunCount, Count: 0},
	}, actx)
	assert.Empty(t, msgs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	actx := newAssertionContext(t)

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"marked", Assertion{Type: AssertMarked, Keys: []string{"1001"}}, "Expected: [1001]"},
		{"mark count", Assertion{Type: AssertMarkCount, Count: 2}, "Expected: 2 unwatch calls"},
		{"watched", Assertion{Type: AssertWatched, Key: "1001", Watched: false}, "Actual: 1001 watched = true"},
		{"watched unknown key", Assertion{Type: AssertWatched, Key: "42"}, `no catalog item with key "42"`},
		{"last occurrence", Assertion{Type: AssertLastOccurrence, Action: "Independence Day", Date: "2016-06-30"}, "Actual: Independence Day last applied for never"},
		{"unknown action", Assertion{Type: AssertLastOccurrence, Action: "Alien"}, `no action named "Alien"`},
		{"run count", Assertion{Type: AssertRunCount, Count: 1}, "Actual: 0 recorded runs"},
		{"unknown type", Assertion{Type: "trace_count"}, `unknown assertion type "trace_count"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs := EvaluateAssertions(NewResult(), []Assertion{tt.assertion}, actx)
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0], tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_NoContext(t *testing.T) {
	msgs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertRunCount, Count: 1}}, nil)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "requires store and catalog context")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	result := NewResult()
	result.addEvent(TraceEvent{Type: EventCycle, Day: "2016-07-04", RunID: "run-1", Summary: "1/1", Status: "ok", Lookahead: true})
	result.addEvent(TraceEvent{Type: EventOutcome, Day: "2016-07-04", Action: "Plebs", Outcome: "applied", Key: "1001/e02", Occurrence: "2016-07-11"})
	result.addEvent(TraceEvent{Type: EventOutcome, Day: "2016-07-04", Action: "Plebs", Outcome: "skipped", Reason: "no longer due"})

	err := &AssertionError{Type: AssertMarked, Expected: "[]", Actual: "[1001/e02]", Trace: result.Trace}
	assert.Equal(t, `Assertion failed: marked
  Expected: []
  Actual: [1001/e02]

Full trace:
  [1] 2016-07-04 run-1 ok 1/1 lookahead
  [2]   applied Plebs 1001/e02 for 2016-07-11
  [3]   skipped Plebs (no longer due)
`, err.Error())

	assert.Len(t, result.Outcomes(), 2)
}
