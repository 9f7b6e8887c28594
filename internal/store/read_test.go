package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
)

func TestGetAction_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetAction(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActions_Empty(t *testing.T) {
	s := createTestStore(t)

	actions, err := s.ListActions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestListActions_OrderedByID(t *testing.T) {
	s := createTestStore(t)

	c := createAction(t, s, annualDefinition(t, "C", "C", "2016-03-01", 1))
	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-01-01", 1))
	b := createAction(t, s, annualDefinition(t, "B", "B", "2016-02-01", 1))

	actions, err := s.ListActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{c.ID, a.ID, b.ID}, actionIDs(actions))
}

func TestDueActions_OrderedByOccurrenceThenID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	july := createAction(t, s, annualDefinition(t, "Fourth", "Fourth", "2016-07-04", 1))
	june := createAction(t, s, annualDefinition(t, "Independence Day", "Independence Day", "2016-06-30", 1))
	tie := createAction(t, s, annualDefinition(t, "Also June", "Also June", "2016-06-30", 1))
	createAction(t, s, annualDefinition(t, "Future", "Future", "2016-07-05", 1))

	due, err := s.DueActions(ctx, mustDate(t, "2016-07-04"))
	require.NoError(t, err)
	assert.Equal(t, []int64{june.ID, tie.ID, july.ID}, actionIDs(due))
}

func TestDueActions_ExcludesSatisfiedOccurrences(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "Independence Day", "Independence Day", "2016-06-30", 1))
	applyState(t, s, a.ID, action.Applied(mustDate(t, "2016-06-30")))

	due, err := s.DueActions(ctx, mustDate(t, "2016-07-04"))
	require.NoError(t, err)
	assert.Empty(t, due)

	// A year later the next occurrence is due again.
	due, err = s.DueActions(ctx, mustDate(t, "2017-06-30"))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, a.ID, due[0].ID)
	require.NotNil(t, due[0].LastOccurrence)
	assert.Equal(t, mustDate(t, "2016-06-30"), *due[0].LastOccurrence)
	assert.True(t, due[0].Completed)
}

func TestDueActions_IsSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-01-01", 1))
	today := mustDate(t, "2016-07-04")

	due, err := s.DueActions(ctx, today)
	require.NoError(t, err)
	require.Len(t, due, 1)

	applyState(t, s, a.ID, action.Applied(mustDate(t, "2016-01-01")))

	// The earlier result is unaffected by later writes.
	assert.Nil(t, due[0].LastOccurrence)

	due, err = s.DueActions(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestLookaheadActions_BoundedAndOrdered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := mustDate(t, "2016-07-04")

	// Created in reverse date order so id order and date order disagree.
	var ids []int64
	for i := 50; i >= 1; i-- {
		anchor := today.AddDays(i).String()
		a := createAction(t, s, periodicDefinition(t, fmt.Sprintf("Show %d", i), fmt.Sprintf("Show %d", i), anchor, 7))
		ids = append([]int64{a.ID}, ids...)
	}

	// Due actions are never part of the lookahead.
	createAction(t, s, periodicDefinition(t, "Due", "Due", "2016-07-01", 7))

	got, err := s.LookaheadActions(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, ids[:10], actionIDs(got))
}

func TestLookaheadActions_UsesNextOccurrenceAfterLast(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := mustDate(t, "2016-07-04")

	// Next occurrence 2016-07-07.
	weekly := createAction(t, s, periodicDefinition(t, "Plebs", "Plebs", "2016-06-30", 7))
	applyState(t, s, weekly.ID, action.Applied(mustDate(t, "2016-06-30")))

	// Next occurrence 2016-07-05.
	fourDays := createAction(t, s, periodicDefinition(t, "Four days", "Four days", "2016-07-01", 4))
	applyState(t, s, fourDays.ID, action.Applied(mustDate(t, "2016-07-01")))

	// Next occurrence 2016-08-01.
	later := createAction(t, s, periodicDefinition(t, "Later", "Later", "2016-08-01", 30))

	got, err := s.LookaheadActions(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{fourDays.ID, weekly.ID, later.ID}, actionIDs(got))
}

func TestLookaheadActions_ExcludesServedActions(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := mustDate(t, "2016-07-04")

	// Applied today: the next occurrence waits for a later cycle.
	servedToday := createAction(t, s, periodicDefinition(t, "Plebs", "Plebs", "2016-07-04", 7))
	applyState(t, s, servedToday.ID, action.Applied(today))

	// Already pre-staged for the next occurrence.
	staged := createAction(t, s, periodicDefinition(t, "Staged", "Staged", "2016-06-27", 7))
	applyState(t, s, staged.ID, action.Applied(mustDate(t, "2016-07-11")))

	// Applied yesterday: eligible.
	yesterday := createAction(t, s, periodicDefinition(t, "Yesterday", "Yesterday", "2016-07-03", 7))
	applyState(t, s, yesterday.ID, action.Applied(mustDate(t, "2016-07-03")))

	got, err := s.LookaheadActions(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{yesterday.ID}, actionIDs(got))
}

func TestLookaheadActions_OnlyEpisodeEffects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	today := mustDate(t, "2016-07-04")

	movie := createAction(t, s, annualDefinition(t, "Independence Day", "Independence Day", "2016-06-30", 1))
	applyState(t, s, movie.ID, action.Applied(mustDate(t, "2016-06-30")))
	createAction(t, s, annualDefinition(t, "V for Vendetta", "V for Vendetta", "2016-11-01", 2))

	show := createAction(t, s, periodicDefinition(t, "Plebs", "Plebs", "2016-07-10", 7))

	got, err := s.LookaheadActions(ctx, today, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{show.ID}, actionIDs(got))
}

func TestLookaheadActions_RejectsNonPositiveLimit(t *testing.T) {
	s := createTestStore(t)

	for _, limit := range []int{0, -1} {
		_, err := s.LookaheadActions(context.Background(), mustDate(t, "2016-07-04"), limit)
		assert.Error(t, err, "limit %d", limit)
	}
}
