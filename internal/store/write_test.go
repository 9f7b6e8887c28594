package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
	"github.com/roach88/plexsched/internal/recurrence"
)

func TestCreateAction_Basic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.CreateAction(ctx, annualDefinition(t, "V for Vendetta", "V for Vendetta (2005)", "2016-11-01", 2))
	require.NoError(t, err)
	assert.Positive(t, a.ID)
	assert.Nil(t, a.LastOccurrence)
	assert.False(t, a.Completed)

	got, err := s.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "V for Vendetta", got.Name)
	assert.Equal(t, "Movies", got.Section)
	assert.Equal(t, "V for Vendetta", got.Selector.Title)
	assert.Equal(t, 2005, got.Selector.Year)
	assert.Equal(t, action.EffectMarkUnwatched, got.Effect)
	assert.Equal(t, recurrence.KindAnnual, got.Rule.Kind())
	assert.Equal(t, mustDate(t, "2016-11-01"), got.Rule.Anchor())
	assert.Equal(t, 2, got.Rule.Every())
	assert.Nil(t, got.LastOccurrence)
	assert.False(t, got.Completed)
	assert.Equal(t, time.Date(2016, 6, 1, 12, 0, 0, 0, time.UTC), got.CreatedAt)
}

func TestCreateAction_CalendarRule(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rule, err := recurrence.NewCalendar(mustDate(t, "2016-01-01"), "0 0 1 * *")
	require.NoError(t, err)

	a := createAction(t, s, action.Definition{
		Name:     "Monthly",
		Section:  "Movies",
		Selector: action.MustParseSelector("key:42"),
		Rule:     rule,
	})

	got, err := s.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, recurrence.KindCalendar, got.Rule.Kind())
	assert.Equal(t, "0 0 1 * *", got.Rule.Expression())
	assert.Equal(t, "42", got.Selector.Key)
	// An empty effect defaults to mark_unwatched.
	assert.Equal(t, action.EffectMarkUnwatched, got.Effect)
}

func TestCreateAction_RejectsInvalidDefinition(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	valid := annualDefinition(t, "Independence Day", "Independence Day", "2016-06-30", 1)

	tests := []struct {
		name   string
		mutate func(*action.Definition)
	}{
		{"missing name", func(d *action.Definition) { d.Name = "" }},
		{"missing section", func(d *action.Definition) { d.Section = " " }},
		{"missing selector", func(d *action.Definition) { d.Selector = action.Selector{} }},
		{"unknown effect", func(d *action.Definition) { d.Effect = "delete" }},
		{"missing rule", func(d *action.Definition) { d.Rule = recurrence.Rule{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := valid
			tt.mutate(&def)
			_, err := s.CreateAction(ctx, def)
			assert.Error(t, err)
		})
	}

	actions, err := s.ListActions(ctx)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestCreateAction_IDsNeverReused(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createAction(t, s, annualDefinition(t, "A", "A", "2016-01-01", 1))
	_, err := s.db.ExecContext(ctx, "DELETE FROM scheduled_actions WHERE id = ?", first.ID)
	require.NoError(t, err)

	second := createAction(t, s, annualDefinition(t, "B", "B", "2016-01-01", 1))
	assert.Greater(t, second.ID, first.ID)
}

func TestDefinitionColumnsImmutable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-01-01", 1))

	for _, stmt := range []string{
		"UPDATE scheduled_actions SET name = 'B' WHERE id = ?",
		"UPDATE scheduled_actions SET anchor_date = '2017-01-01' WHERE id = ?",
		"UPDATE scheduled_actions SET every = 3 WHERE id = ?",
		"UPDATE scheduled_actions SET target_selector = 'B' WHERE id = ?",
	} {
		_, err := s.db.ExecContext(ctx, stmt, a.ID)
		require.Error(t, err, stmt)
		assert.Contains(t, err.Error(), "immutable")
	}

	// State columns stay writable.
	applyState(t, s, a.ID, action.Applied(mustDate(t, "2016-01-01")))
}

func TestSchemaRejectsUnknownEnumValues(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions (name, section, target_selector, effect, rule_kind, anchor_date, every, created_at)
		VALUES ('x', 'Movies', 'x', 'mark_unwatched', 'hourly', '2016-01-01', 1, '2016-01-01T00:00:00Z')
	`)
	assert.Error(t, err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_actions (name, section, target_selector, effect, rule_kind, anchor_date, every, created_at)
		VALUES ('x', 'Movies', 'x', 'delete', 'annual', '2016-01-01', 1, '2016-01-01T00:00:00Z')
	`)
	assert.Error(t, err)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	started := time.Date(2016, 7, 4, 3, 0, 0, 0, time.UTC)
	runs := []Run{
		{
			ID:         "run-1",
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Today:      mustDate(t, "2016-07-04"),
			Applied:    2,
			Total:      2,
			Status:     RunStatusOK,
		},
		{
			ID:             "run-2",
			StartedAt:      started.Add(time.Hour),
			FinishedAt:     started.Add(time.Hour + time.Second),
			Today:          mustDate(t, "2016-07-04"),
			Applied:        0,
			Total:          1,
			Lookahead:      true,
			Status:         RunStatusAborted,
			FailedActionID: 7,
			Error:          "unscrobble 1001: boom",
		},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(ctx, r))
	}

	got, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, runs[1], got[0])
	assert.Equal(t, runs[0], got[1])
	assert.Zero(t, got[1].FailedActionID)

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = s.ListRuns(ctx, 0)
	assert.Error(t, err)
}

func TestRecordRun_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := Run{
		ID:         "run-1",
		StartedAt:  time.Date(2016, 7, 4, 3, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2016, 7, 4, 3, 0, 1, 0, time.UTC),
		Today:      mustDate(t, "2016-07-04"),
		Status:     RunStatusOK,
	}
	require.NoError(t, s.RecordRun(ctx, run))
	assert.Error(t, s.RecordRun(ctx, run))
}
