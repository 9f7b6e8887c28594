package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/recurrence"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.now = func() time.Time { return time.Date(2016, 6, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { s.Close() })
	return s
}

func mustDate(t *testing.T, s string) civil.Date {
	t.Helper()
	d, err := civil.ParseDate(s)
	require.NoError(t, err)
	return d
}

// annualDefinition returns a valid annual movie definition.
func annualDefinition(t *testing.T, name, title, anchor string, years int) action.Definition {
	t.Helper()
	rule, err := recurrence.NewAnnual(mustDate(t, anchor), years)
	require.NoError(t, err)
	return action.Definition{
		Name:     name,
		Section:  "Movies",
		Selector: action.MustParseSelector(title),
		Effect:   action.EffectMarkUnwatched,
		Rule:     rule,
	}
}

// periodicDefinition returns a valid periodic show definition.
func periodicDefinition(t *testing.T, name, title, anchor string, days int) action.Definition {
	t.Helper()
	rule, err := recurrence.NewPeriodicDays(mustDate(t, anchor), days)
	require.NoError(t, err)
	return action.Definition{
		Name:     name,
		Section:  "TV Shows",
		Selector: action.MustParseSelector(title),
		Effect:   action.EffectUnwatchNextEpisode,
		Rule:     rule,
	}
}

// createAction stores def and fails the test on error.
func createAction(t *testing.T, s *Store, def action.Definition) action.Action {
	t.Helper()
	a, err := s.CreateAction(context.Background(), def)
	require.NoError(t, err)
	return a
}

// applyState commits state for id in its own transaction.
func applyState(t *testing.T, s *Store, id int64, state action.State) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CommitAction(ctx, id, state))
	require.NoError(t, tx.Commit())
}

func actionIDs(actions []action.Action) []int64 {
	ids := make([]int64, len(actions))
	for i, a := range actions {
		ids[i] = a.ID
	}
	return ids
}
