package mock

import (
	"context"

	"llm-eval-app/internal/db"
	"llm-eval-app/internal/eval"
)

// Store is a mock of the persistence methods used by the api and the worker.
type Store struct {
	PingFn             func(ctx context.Context) error
	SaveBatchFn        func(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error)
	ListExperimentsFn  func(ctx context.Context) ([]db.Experiment, error)
	CreateBatchJobFn   func(ctx context.Context, id, systemPrompt string, request []byte) error
	GetBatchJobFn      func(ctx context.Context, id string) (*db.BatchJob, error)
	MarkBatchRunningFn func(ctx context.Context, id string) error
	CompleteBatchJobFn func(ctx context.Context, id, resultRef string, experimentID int64) error
	FailBatchJobFn     func(ctx context.Context, id, msg string) error
}

func (s *Store) Ping(ctx context.Context) error {
	if s.PingFn == nil {
		return nil
	}
	return s.PingFn(ctx)
}

func (s *Store) SaveBatch(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error) {
	return s.SaveBatchFn(ctx, systemPrompt, cases, batch)
}

func (s *Store) ListExperiments(ctx context.Context) ([]db.Experiment, error) {
	return s.ListExperimentsFn(ctx)
}

func (s *Store) CreateBatchJob(ctx context.Context, id, systemPrompt string, request []byte) error {
	return s.CreateBatchJobFn(ctx, id, systemPrompt, request)
}

func (s *Store) GetBatchJob(ctx context.Context, id string) (*db.BatchJob, error) {
	return s.GetBatchJobFn(ctx, id)
}

func (s *Store) MarkBatchRunning(ctx context.Context, id string) error {
	if s.MarkBatchRunningFn == nil {
		return nil
	}
	return s.MarkBatchRunningFn(ctx, id)
}

func (s *Store) CompleteBatchJob(ctx context.Context, id, resultRef string, experimentID int64) error {
	return s.CompleteBatchJobFn(ctx, id, resultRef, experimentID)
}

func (s *Store) FailBatchJob(ctx context.Context, id, msg string) error {
	return s.FailBatchJobFn(ctx, id, msg)
}
