// Package worker runs queued evaluation batches.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"llm-eval-app/internal/db"
	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/schemas"
	"llm-eval-app/internal/storage"
)

// TaskRunEvaluation carries a batch id as its payload.
const TaskRunEvaluation = "run_evaluation"

func NewRunEvaluationTask(batchID string) *asynq.Task {
	return asynq.NewTask(TaskRunEvaluation, []byte(batchID))
}

type Evaluator interface {
	Run(ctx context.Context, systemRole string, testCases []eval.TestCase) (*eval.Batch, error)
}

type BatchStore interface {
	GetBatchJob(ctx context.Context, id string) (*db.BatchJob, error)
	MarkBatchRunning(ctx context.Context, id string) error
	SaveBatch(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error)
	CompleteBatchJob(ctx context.Context, id, resultRef string, experimentID int64) error
	FailBatchJob(ctx context.Context, id, msg string) error
}

type Archive interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type Server struct {
	Store   BatchStore
	Archive Archive
	Eval    Evaluator
	Logger  *zap.Logger
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRunEvaluation, s.HandleRunEvaluation)
	return mux
}

// HandleRunEvaluation runs one queued batch. Failures of the batch itself are
// recorded on the job row and reported to asynq as done so they are not retried.
func (s *Server) HandleRunEvaluation(ctx context.Context, t *asynq.Task) error {
	id := string(t.Payload())
	log := s.Logger.With(zap.String("batch_id", id))
	log.Info("starting evaluation batch")

	job, err := s.Store.GetBatchJob(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		log.Warn("batch job not found")
		return fmt.Errorf("batch %s: %w", id, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	var req schemas.EvaluateRequest
	if err := json.Unmarshal(job.Request, &req); err != nil {
		return s.fail(ctx, log, id, fmt.Errorf("decode request: %w", err))
	}
	if err := s.Store.MarkBatchRunning(ctx, id); err != nil {
		return err
	}

	batch, err := s.Eval.Run(ctx, req.SystemRole, req.TestCases)
	if err != nil {
		return s.fail(ctx, log, id, err)
	}
	ref, err := s.Archive.PutJSON(ctx, storage.BatchKey(id), batch)
	if err != nil {
		return s.fail(ctx, log, id, fmt.Errorf("archive: %w", err))
	}
	expID, err := s.Store.SaveBatch(ctx, req.SystemRole, req.TestCases, batch)
	if err != nil {
		return s.fail(ctx, log, id, fmt.Errorf("save: %w", err))
	}
	if err := s.Store.CompleteBatchJob(ctx, id, ref, expID); err != nil {
		return err
	}
	log.Info("evaluation batch completed", zap.String("ref", ref), zap.Int64("experiment_id", expID))
	return nil
}

func (s *Server) fail(ctx context.Context, log *zap.Logger, id string, cause error) error {
	log.Error("evaluation batch failed", zap.Error(cause))
	if err := s.Store.FailBatchJob(ctx, id, cause.Error()); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

func Run(redisAddr string, s *Server) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Logger:      s.Logger.Sugar(),
	})
	return srv.Run(s.mux())
}
