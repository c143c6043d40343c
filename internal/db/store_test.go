package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-eval-app/internal/eval"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewStore(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestStore_SaveBatch(t *testing.T) {
	store, mock := setupMockStore(t)
	cases := []eval.TestCase{{Input: "2+2?", ReferenceAnswer: "4"}}
	batch := &eval.Batch{
		ModelResponses: [][]eval.ModelResponse{{
			{Model: "llama", Answer: "4"},
			{Model: "mixtral", Answer: "four"},
		}},
		ModelEvaluations: [][]eval.EvaluationResponse{{
			{Accuracy: 1, Clarity: 1, Relevancy: 1},
			{Accuracy: 0.5, Clarity: 0.6, Relevancy: 0.7},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)WHERE md5\(system_prompt\) = md5\(\$1\) AND system_prompt = \$1\s.*INSERT INTO experiments`).
		WithArgs("be terse").
		WillReturnRows(sqlmock.NewRows([]string{"experiment_id"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO test_cases").
		WithArgs(int64(3), "2+2?", "4").
		WillReturnRows(sqlmock.NewRows([]string{"test_id"}).AddRow(11))
	mock.ExpectExec("INSERT INTO evaluation_results").
		WithArgs(int64(11), "llama", "4", 1.0, 1.0, 1.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO evaluation_results").
		WithArgs(int64(11), "mixtral", "four", 0.5, 0.6, 0.7).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	id, err := store.SaveBatch(context.Background(), "be terse", cases, batch)

	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveBatch_RollsBackOnError(t *testing.T) {
	store, mock := setupMockStore(t)
	cases := []eval.TestCase{{Input: "q", ReferenceAnswer: "a"}}
	batch := &eval.Batch{
		ModelResponses:   [][]eval.ModelResponse{{{Model: "m", Answer: "x"}}},
		ModelEvaluations: [][]eval.EvaluationResponse{{{}}},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO experiments").
		WillReturnRows(sqlmock.NewRows([]string{"experiment_id"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO test_cases").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.SaveBatch(context.Background(), "", cases, batch)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert test case 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveBatch_ShapeMismatch(t *testing.T) {
	store, mock := setupMockStore(t)

	_, err := store.SaveBatch(context.Background(), "", []eval.TestCase{{Input: "q"}}, &eval.Batch{})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = store.SaveBatch(context.Background(), "", []eval.TestCase{{Input: "q"}}, &eval.Batch{
		ModelResponses:   [][]eval.ModelResponse{{{Model: "m"}}},
		ModelEvaluations: [][]eval.EvaluationResponse{{}},
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = store.SaveBatch(context.Background(), "", nil, nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListExperiments(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)
	cols := []string{
		"experiment_id", "experiment_name", "system_prompt", "experiment_created_at",
		"test_id", "test_case", "reference_answer",
		"model_name", "answer", "accuracy", "clarity", "relevancy", "evaluation_created_at",
	}
	mock.ExpectQuery("FROM experiments e").WillReturnRows(sqlmock.NewRows(cols).
		AddRow(1, "Experiment 1", "p1", now, 10, "2+2?", "4", "llama", "4", 1.0, 0.9, 0.8, now).
		AddRow(1, "Experiment 1", "p1", now, 10, "2+2?", "4", "mixtral", "four", 0.5, 0.5, 0.5, now).
		AddRow(1, "Experiment 1", "p1", now, 11, "3+3?", "6", nil, nil, nil, nil, nil, nil).
		AddRow(2, "Experiment 2", "p2", now, nil, nil, nil, nil, nil, nil, nil, nil, nil))

	got, err := store.ListExperiments(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Experiment 1", got[0].Name)
	require.Len(t, got[0].TestCases, 2)
	require.Len(t, got[0].TestCases[0].Evaluations, 2)
	assert.Equal(t, "mixtral", got[0].TestCases[0].Evaluations[1].ModelName)
	assert.Equal(t, 0.9, got[0].TestCases[0].Evaluations[0].Clarity)
	assert.Empty(t, got[0].TestCases[1].Evaluations)
	assert.Equal(t, "p2", got[1].SystemPrompt)
	assert.Empty(t, got[1].TestCases)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupExperimentRows_Empty(t *testing.T) {
	got := groupExperimentRows(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_GetBatchJob_NotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery("FROM evaluation_batches").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := store.GetBatchJob(context.Background(), "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_BatchJobLifecycle(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO evaluation_batches").
		WithArgs("b1", StatusQueued, "sys", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE evaluation_batches SET status").
		WithArgs("b1", StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE evaluation_batches SET status").
		WithArgs("b1", StatusCompleted, "s3://bucket/batches/b1.json", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE evaluation_batches SET status").
		WithArgs("b2", StatusFailed, "boom").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.CreateBatchJob(ctx, "b1", "sys", []byte(`{}`)))
	require.NoError(t, store.MarkBatchRunning(ctx, "b1"))
	require.NoError(t, store.CompleteBatchJob(ctx, "b1", "s3://bucket/batches/b1.json", 4))
	require.NoError(t, store.FailBatchJob(ctx, "b2", "boom"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
