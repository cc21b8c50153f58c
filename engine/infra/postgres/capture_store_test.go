package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureStore_Insert(t *testing.T) {
	t.Run("Should insert columns in sorted order", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		mockPool.ExpectExec(`INSERT INTO quiz_results \(score,user_id\)`).
			WithArgs(float64(7), "user-1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.Insert(context.Background(), "quiz_results", map[string]any{
			"user_id": "user-1",
			"score":   float64(7),
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should reject invalid table names", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		err = store.Insert(context.Background(), "quiz; DROP TABLE users", map[string]any{"a": 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid capture table name")
	})

	t.Run("Should reject empty rows", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		err = store.Insert(context.Background(), "quiz_results", map[string]any{})
		require.Error(t, err)
	})
}

func TestCaptureStore_Upsert(t *testing.T) {
	t.Run("Should emit an ON CONFLICT DO UPDATE clause", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		mockPool.ExpectExec(`INSERT INTO quiz_progress .+ ON CONFLICT \(user_id, task_id\) DO UPDATE SET`).
			WithArgs(float64(3), "task-1", "user-1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.Upsert(context.Background(), "quiz_progress", map[string]any{
			"user_id":  "user-1",
			"task_id":  "task-1",
			"attempts": float64(3),
		}, []string{"user_id", "task_id"})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should fall back to DO NOTHING without a conflict target", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		mockPool.ExpectExec(`INSERT INTO quiz_progress .+ ON CONFLICT DO NOTHING`).
			WithArgs("user-1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = store.Upsert(context.Background(), "quiz_progress", map[string]any{"user_id": "user-1"}, nil)
		require.NoError(t, err)
	})

	t.Run("Should reject invalid conflict target columns", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		store := NewCaptureStore(mockPool)

		err = store.Upsert(context.Background(), "quiz_progress", map[string]any{"a": 1}, []string{"user_id; --"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid conflict target")
	})
}
