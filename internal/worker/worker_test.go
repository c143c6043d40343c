package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"llm-eval-app/internal/db"
	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/mock"
	"llm-eval-app/internal/worker"
)

const request = `{"systemRole":"sys","testCases":[{"input":"2+2?","referenceAnswer":"4"}]}`

var batch = &eval.Batch{
	ModelResponses:   [][]eval.ModelResponse{{{Model: "m", Answer: "4"}}},
	ModelEvaluations: [][]eval.EvaluationResponse{{{Accuracy: 1, Clarity: 1, Relevancy: 1}}},
}

type recorder struct {
	running   bool
	completed []any
	failed    string
}

func newStore(rec *recorder) *mock.Store {
	return &mock.Store{
		GetBatchJobFn: func(_ context.Context, id string) (*db.BatchJob, error) {
			if id != "b1" {
				return nil, db.ErrNotFound
			}
			return &db.BatchJob{ID: id, Status: db.StatusQueued, Request: []byte(request)}, nil
		},
		MarkBatchRunningFn: func(context.Context, string) error {
			rec.running = true
			return nil
		},
		SaveBatchFn: func(_ context.Context, prompt string, cases []eval.TestCase, b *eval.Batch) (int64, error) {
			return 9, nil
		},
		CompleteBatchJobFn: func(_ context.Context, id, ref string, expID int64) error {
			rec.completed = []any{id, ref, expID}
			return nil
		},
		FailBatchJobFn: func(_ context.Context, id, msg string) error {
			rec.failed = msg
			return nil
		},
	}
}

func archive() *mock.Archive {
	return &mock.Archive{PutJSONFn: func(_ context.Context, key string, v any) (string, error) {
		return "s3://evals/" + key, nil
	}}
}

func TestHandleRunEvaluation_Completes(t *testing.T) {
	rec := &recorder{}
	s := &worker.Server{
		Store:   newStore(rec),
		Archive: archive(),
		Eval: &mock.Evaluator{RunFn: func(_ context.Context, role string, cases []eval.TestCase) (*eval.Batch, error) {
			assert.Equal(t, "sys", role)
			assert.Equal(t, []eval.TestCase{{Input: "2+2?", ReferenceAnswer: "4"}}, cases)
			return batch, nil
		}},
		Logger: zap.NewNop(),
	}

	err := s.HandleRunEvaluation(context.Background(), worker.NewRunEvaluationTask("b1"))

	require.NoError(t, err)
	assert.True(t, rec.running)
	assert.Equal(t, []any{"b1", "s3://evals/batches/b1.json", int64(9)}, rec.completed)
	assert.Empty(t, rec.failed)
}

func TestHandleRunEvaluation_ModelFailureMarksJobFailed(t *testing.T) {
	rec := &recorder{}
	s := &worker.Server{
		Store:   newStore(rec),
		Archive: archive(),
		Eval: &mock.Evaluator{RunFn: func(context.Context, string, []eval.TestCase) (*eval.Batch, error) {
			return nil, errors.New("rate limited")
		}},
		Logger: zap.NewNop(),
	}

	err := s.HandleRunEvaluation(context.Background(), worker.NewRunEvaluationTask("b1"))

	require.NoError(t, err)
	assert.Equal(t, "rate limited", rec.failed)
	assert.Nil(t, rec.completed)
}

func TestHandleRunEvaluation_ArchiveFailure(t *testing.T) {
	rec := &recorder{}
	s := &worker.Server{
		Store: newStore(rec),
		Archive: &mock.Archive{PutJSONFn: func(context.Context, string, any) (string, error) {
			return "", errors.New("bucket missing")
		}},
		Eval: &mock.Evaluator{RunFn: func(context.Context, string, []eval.TestCase) (*eval.Batch, error) {
			return batch, nil
		}},
		Logger: zap.NewNop(),
	}

	require.NoError(t, s.HandleRunEvaluation(context.Background(), worker.NewRunEvaluationTask("b1")))
	assert.Equal(t, "archive: bucket missing", rec.failed)
}

func TestHandleRunEvaluation_UnknownBatchSkipsRetry(t *testing.T) {
	s := &worker.Server{Store: newStore(&recorder{}), Logger: zap.NewNop()}

	err := s.HandleRunEvaluation(context.Background(), worker.NewRunEvaluationTask("nope"))

	assert.ErrorIs(t, err, asynq.SkipRetry)
}
