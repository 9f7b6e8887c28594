package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/plexsched/internal/action"
)

func TestTx_CommitPersistsState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-06-30", 1))
	applyState(t, s, a.ID, action.Applied(mustDate(t, "2016-06-30")))

	got, err := s.GetAction(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastOccurrence)
	assert.Equal(t, mustDate(t, "2016-06-30"), *got.LastOccurrence)
	assert.True(t, got.Completed)
}

func TestTx_RollbackDiscardsState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-06-30", 1))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CommitAction(ctx, a.ID, action.Applied(mustDate(t, "2016-06-30"))))
	require.NoError(t, tx.Rollback())

	got, err := s.GetAction(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastOccurrence)
	assert.False(t, got.Completed)
}

func TestTx_RollbackAfterCommitIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := createAction(t, s, annualDefinition(t, "A", "A", "2016-06-30", 1))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CommitAction(ctx, a.ID, action.Applied(mustDate(t, "2016-06-30"))))
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Rollback())
}

func TestTx_CommitActionUnknownID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	err = tx.CommitAction(ctx, 404, action.Applied(mustDate(t, "2016-06-30")))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestTx_BeginFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	_, err := s.Begin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_CommitFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_actions").
		WithArgs(sqlmock.AnyArg(), 1, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CommitAction(ctx, 7, action.Applied(mustDate(t, "2016-06-30"))))

	err = tx.Commit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_CommitActionExecFailure(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_actions").
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	err = tx.CommitAction(ctx, 7, action.Applied(mustDate(t, "2016-06-30")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit action 7")

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTx_CommitActionNoRows(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_actions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	err = tx.CommitAction(ctx, 7, action.State{})
	assert.ErrorIs(t, err, ErrNotFound)
}
