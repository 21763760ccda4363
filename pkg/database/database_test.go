package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/nanba/pharmacy-backend/pkg/database"
	"github.com/nanba/pharmacy-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T, monitorPings bool) (*database.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(monitorPings))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return database.Wrap(sqlx.NewDb(raw, "postgres"), logger.Nop()), mock
}

func TestHealth(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		db, mock := newMock(t, true)
		mock.ExpectPing()

		status := db.Health(context.Background())
		assert.Equal(t, "up", status["status"])
		assert.Contains(t, status, "open_conns")
		assert.Contains(t, status, "latency_ms")
		assert.NotContains(t, status, "error")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("down", func(t *testing.T) {
		db, mock := newMock(t, true)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		status := db.Health(context.Background())
		assert.Equal(t, "down", status["status"])
		assert.Equal(t, "connection refused", status["error"])
	})
}

func TestTransaction(t *testing.T) {
	const stmt = "UPDATE orders SET flag_reason = 'x'"

	t.Run("commits", func(t *testing.T) {
		db, mock := newMock(t, false)
		mock.ExpectBegin()
		mock.ExpectExec(stmt).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
			_, err := tx.Exec(stmt)
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and returns fn error", func(t *testing.T) {
		db, mock := newMock(t, false)
		mock.ExpectBegin()
		mock.ExpectRollback()

		sentinel := errors.New("order not found")
		err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic and re-panics", func(t *testing.T) {
		db, mock := newMock(t, false)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
				panic("boom")
			})
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mock := newMock(t, false)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := db.Transaction(context.Background(), func(tx *sqlx.Tx) error {
			called = true
			return nil
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many connections")
		assert.False(t, called)
	})
}
