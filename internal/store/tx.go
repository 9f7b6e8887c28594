package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"

	"github.com/roach88/plexsched/internal/action"
)

// Transaction is the unit of work for applying one action. It is an
// interface so the engine can be driven by other stores in tests.
type Transaction interface {
	// CommitAction stages the new state of an action inside the transaction.
	CommitAction(ctx context.Context, id int64, state action.State) error

	// Commit makes staged writes durable.
	Commit() error

	// Rollback discards staged writes. Calling it after Commit is a no-op.
	Rollback() error
}

// Tx is a SQLite transaction scoped to a single action.
type Tx struct {
	tx *sql.Tx
}

// Begin opens a transaction. The caller must Commit or Rollback it.
func (s *Store) Begin(ctx context.Context) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	return &Tx{tx: tx}, nil
}

// CommitAction writes last_occurrence_date and completed for one action.
// No other column is touched.
func (t *Tx) CommitAction(ctx context.Context, id int64, state action.State) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE scheduled_actions
		SET last_occurrence_date = ?, completed = ?
		WHERE id = ?
	`,
		marshalNullDate(state.LastOccurrence),
		boolToInt(state.Completed),
		id,
	)
	if err != nil {
		return errors.Wrapf(err, "commit action %d", id)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "commit action %d: rows affected", id)
	}
	if n != 1 {
		return errors.Wrapf(ErrNotFound, "commit action %d", id)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is
// not an error.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "rollback tx")
	}
	return nil
}
