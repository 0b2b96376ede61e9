package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTx records how a transaction ended. Methods other than Commit and
// Rollback are not used by WithTx.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return tx.commitErr
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestWithTxCommits(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}

	err := WithTx(context.Background(), db, func(tx pgx.Tx) error { return nil })
	require.NoError(t, err)
	assert.True(t, db.tx.committed)
	assert.False(t, db.tx.rolledBack)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}
	sentinel := errors.New("slot taken")

	err := WithTx(context.Background(), db, func(tx pgx.Tx) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, db.tx.committed)
	assert.True(t, db.tx.rolledBack)
}

func TestWithTxRollsBackOnCommitFailure(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{commitErr: errors.New("serialization failure")}}

	err := WithTx(context.Background(), db, func(tx pgx.Tx) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit tx")
	assert.True(t, db.tx.rolledBack)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := &fakeBeginner{tx: &fakeTx{}}

	assert.PanicsWithValue(t, "boom", func() {
		_ = WithTx(context.Background(), db, func(tx pgx.Tx) error { panic("boom") })
	})
	assert.True(t, db.tx.rolledBack)
	assert.False(t, db.tx.committed)
}

func TestWithTxBeginFailure(t *testing.T) {
	db := &fakeBeginner{beginErr: errors.New("pool closed")}

	called := false
	err := WithTx(context.Background(), db, func(tx pgx.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	s.Close()
	assert.Equal(t, PoolStats{}, s.Stats())
	assert.Error(t, s.HealthCheck(context.Background()))
}
