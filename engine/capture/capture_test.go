package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgate/taskgate/engine/task"
)

type recordedWrite struct {
	table    string
	row      map[string]any
	conflict []string
}

type fakeStore struct {
	inserts   []recordedWrite
	upserts   []recordedWrite
	failTable string
}

func (s *fakeStore) Insert(_ context.Context, table string, row map[string]any) error {
	if table == s.failTable {
		return errors.New("permission denied")
	}
	s.inserts = append(s.inserts, recordedWrite{table: table, row: row})
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, table string, row map[string]any, conflictTarget []string) error {
	if table == s.failTable {
		return errors.New("permission denied")
	}
	s.upserts = append(s.upserts, recordedWrite{table: table, row: row, conflict: conflictTarget})
	return nil
}

func TestExecutor_Execute(t *testing.T) {
	t.Run("Should render fields and run operations in order", func(t *testing.T) {
		store := &fakeStore{}
		executor := NewExecutor(store)

		dc := &task.DataCapture{Operations: []task.CaptureOperation{
			{
				Table:     "quiz_results",
				Operation: task.CaptureInsert,
				Fields: []task.CaptureField{
					{Column: "user_id", Value: "{{auth.userId}}"},
					{Column: "score", Value: "{{response.json.score}}"},
				},
			},
			{
				Table:          "quiz_progress",
				Operation:      task.CaptureUpsert,
				ConflictTarget: []string{"user_id", "task_id"},
				Fields: []task.CaptureField{
					{Column: "user_id", Value: "{{auth.userId}}"},
				},
			},
		}}
		tplCtx := map[string]any{
			"auth":     map[string]any{"userId": "user-1"},
			"response": map[string]any{"json": map[string]any{"score": float64(7)}},
		}

		summary, err := executor.Execute(context.Background(), dc, tplCtx)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.Equal(t, 2, summary.Operations)
		assert.Equal(t, []string{"quiz_results", "quiz_progress"}, summary.Tables)

		require.Len(t, store.inserts, 1)
		assert.Equal(t, "user-1", store.inserts[0].row["user_id"])
		assert.Equal(t, float64(7), store.inserts[0].row["score"])

		require.Len(t, store.upserts, 1)
		assert.Equal(t, []string{"user_id", "task_id"}, store.upserts[0].conflict)
	})

	t.Run("Should abort on the first failing operation", func(t *testing.T) {
		store := &fakeStore{failTable: "quiz_results"}
		executor := NewExecutor(store)

		dc := &task.DataCapture{Operations: []task.CaptureOperation{
			{Table: "quiz_results", Operation: task.CaptureInsert, Fields: []task.CaptureField{{Column: "a", Value: "1"}}},
			{Table: "quiz_progress", Operation: task.CaptureInsert, Fields: []task.CaptureField{{Column: "a", Value: "1"}}},
		}}

		summary, err := executor.Execute(context.Background(), dc, map[string]any{})
		require.Error(t, err)
		assert.Nil(t, summary)
		assert.Contains(t, err.Error(), `insert failed on table "quiz_results"`)
		assert.Empty(t, store.inserts)
	})

	t.Run("Should do nothing without operations", func(t *testing.T) {
		executor := NewExecutor(&fakeStore{})

		summary, err := executor.Execute(context.Background(), nil, map[string]any{})
		require.NoError(t, err)
		assert.Nil(t, summary)

		summary, err = executor.Execute(context.Background(), &task.DataCapture{}, map[string]any{})
		require.NoError(t, err)
		assert.Nil(t, summary)
	})
}

func TestCoerceValue(t *testing.T) {
	t.Run("Should coerce rendered strings into column types", func(t *testing.T) {
		assert.Nil(t, coerceValue(""))
		assert.Nil(t, coerceValue("   "))
		assert.Equal(t, true, coerceValue("true"))
		assert.Equal(t, false, coerceValue("false"))
		assert.Equal(t, float64(42), coerceValue("42"))
		assert.Equal(t, 4.5, coerceValue("4.5"))
		assert.Equal(t, float64(-3), coerceValue("-3"))
		assert.Equal(t, map[string]any{"a": float64(1)}, coerceValue(`{"a": 1}`))
		assert.Equal(t, []any{float64(1), float64(2)}, coerceValue(`[1, 2]`))
	})

	t.Run("Should leave non-round-trip numerics and broken JSON as strings", func(t *testing.T) {
		assert.Equal(t, "007", coerceValue("007"))
		assert.Equal(t, "1e3", coerceValue("1e3"))
		assert.Equal(t, "{not json}", coerceValue("{not json}"))
		assert.Equal(t, "plain text", coerceValue("plain text"))
	})
}
