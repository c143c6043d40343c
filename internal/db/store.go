package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"llm-eval-app/internal/eval"
)

// ErrShapeMismatch is returned by SaveBatch when the batch does not line up
// with its test cases.
var ErrShapeMismatch = errors.New("batch shape does not match test cases")

// Store persists experiments, their test cases and judge scores.
type Store struct {
	DB *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{DB: db}
}

// New experiments are named "Experiment N"; an existing experiment with the same
// system prompt is reused.
const upsertExperimentSQL = `
WITH existing AS (
	SELECT experiment_id FROM experiments
	WHERE md5(system_prompt) = md5($1) AND system_prompt = $1
	ORDER BY experiment_id LIMIT 1
), inserted AS (
	INSERT INTO experiments (experiment_name, system_prompt, created_at)
	SELECT CONCAT('Experiment ', (SELECT COUNT(*) + 1 FROM experiments)), $1, NOW()
	WHERE NOT EXISTS (SELECT 1 FROM existing)
	RETURNING experiment_id
)
SELECT experiment_id FROM inserted
UNION ALL
SELECT experiment_id FROM existing
LIMIT 1`

const upsertTestCaseSQL = `
WITH existing AS (
	SELECT test_id FROM test_cases WHERE experiment_id = $1 AND test_case = $2 ORDER BY test_id LIMIT 1
), inserted AS (
	INSERT INTO test_cases (experiment_id, test_case, reference_answer, created_at)
	SELECT $1, $2, $3, NOW()
	WHERE NOT EXISTS (SELECT 1 FROM existing)
	RETURNING test_id
)
SELECT test_id FROM inserted
UNION ALL
SELECT test_id FROM existing
LIMIT 1`

const upsertEvaluationSQL = `
INSERT INTO evaluation_results (test_id, model_name, answer, accuracy, clarity, relevancy, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (test_id, model_name) DO UPDATE SET
	answer = EXCLUDED.answer,
	accuracy = EXCLUDED.accuracy,
	clarity = EXCLUDED.clarity,
	relevancy = EXCLUDED.relevancy,
	created_at = NOW()`

const listExperimentsSQL = `
SELECT e.experiment_id, e.experiment_name, e.system_prompt, e.created_at AS experiment_created_at,
	t.test_id, t.test_case, t.reference_answer,
	r.model_name, r.answer, r.accuracy, r.clarity, r.relevancy, r.created_at AS evaluation_created_at
FROM experiments e
LEFT JOIN test_cases t ON t.experiment_id = e.experiment_id
LEFT JOIN evaluation_results r ON r.test_id = t.test_id
ORDER BY e.experiment_id, t.test_id, r.eval_id`

func (s *Store) UpsertExperiment(ctx context.Context, systemPrompt string) (int64, error) {
	return upsertExperiment(ctx, s.DB, systemPrompt)
}

func (s *Store) UpsertTestCase(ctx context.Context, experimentID int64, input, referenceAnswer string) (int64, error) {
	return upsertTestCase(ctx, s.DB, experimentID, input, referenceAnswer)
}

func (s *Store) UpsertEvaluationResult(ctx context.Context, testID int64, modelName, answer string, score eval.EvaluationResponse) error {
	return upsertEvaluation(ctx, s.DB, testID, modelName, answer, score)
}

// SaveBatch stores a whole orchestrator result in one transaction and returns
// the experiment id.
func (s *Store) SaveBatch(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error) {
	if err := checkShape(cases, batch); err != nil {
		return 0, err
	}
	var experimentID int64
	err := WithTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		var err error
		experimentID, err = upsertExperiment(ctx, tx, systemPrompt)
		if err != nil {
			return fmt.Errorf("upsert experiment: %w", err)
		}
		for i, tc := range cases {
			testID, err := upsertTestCase(ctx, tx, experimentID, tc.Input, tc.ReferenceAnswer)
			if err != nil {
				return fmt.Errorf("upsert test case %d: %w", i, err)
			}
			for j, resp := range batch.ModelResponses[i] {
				if err := upsertEvaluation(ctx, tx, testID, resp.Model, resp.Answer, batch.ModelEvaluations[i][j]); err != nil {
					return fmt.Errorf("upsert evaluation %d/%s: %w", i, resp.Model, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return experimentID, nil
}

func checkShape(cases []eval.TestCase, batch *eval.Batch) error {
	if batch == nil {
		return fmt.Errorf("%w: nil batch", ErrShapeMismatch)
	}
	if len(batch.ModelResponses) != len(cases) || len(batch.ModelEvaluations) != len(cases) {
		return fmt.Errorf("%w: %d test cases, %d responses, %d evaluations",
			ErrShapeMismatch, len(cases), len(batch.ModelResponses), len(batch.ModelEvaluations))
	}
	for i := range cases {
		if len(batch.ModelResponses[i]) != len(batch.ModelEvaluations[i]) {
			return fmt.Errorf("%w: test case %d has %d responses and %d evaluations",
				ErrShapeMismatch, i, len(batch.ModelResponses[i]), len(batch.ModelEvaluations[i]))
		}
	}
	return nil
}

// ListExperiments returns every experiment with its test cases and scores.
func (s *Store) ListExperiments(ctx context.Context) ([]Experiment, error) {
	var rows []experimentRow
	if err := s.DB.SelectContext(ctx, &rows, listExperimentsSQL); err != nil {
		return nil, err
	}
	return groupExperimentRows(rows), nil
}

// groupExperimentRows folds ordered join rows into nested experiments.
func groupExperimentRows(rows []experimentRow) []Experiment {
	out := make([]Experiment, 0)
	expIdx := map[int64]int{}
	caseIdx := map[int64]int{}
	for _, r := range rows {
		ei, ok := expIdx[r.ExperimentID]
		if !ok {
			out = append(out, Experiment{
				ID:           r.ExperimentID,
				Name:         r.ExperimentName,
				SystemPrompt: r.SystemPrompt,
				CreatedAt:    r.ExperimentCreatedAt,
				TestCases:    []TestCase{},
			})
			ei = len(out) - 1
			expIdx[r.ExperimentID] = ei
		}
		if !r.TestID.Valid {
			continue
		}
		exp := &out[ei]
		ci, ok := caseIdx[r.TestID.Int64]
		if !ok {
			exp.TestCases = append(exp.TestCases, TestCase{
				ID:              r.TestID.Int64,
				Input:           r.TestCase.String,
				ReferenceAnswer: r.ReferenceAnswer.String,
				Evaluations:     []Evaluation{},
			})
			ci = len(exp.TestCases) - 1
			caseIdx[r.TestID.Int64] = ci
		}
		if !r.ModelName.Valid {
			continue
		}
		tc := &exp.TestCases[ci]
		tc.Evaluations = append(tc.Evaluations, Evaluation{
			ModelName: r.ModelName.String,
			Answer:    r.Answer.String,
			Accuracy:  r.Accuracy.Float64,
			Clarity:   r.Clarity.Float64,
			Relevancy: r.Relevancy.Float64,
			CreatedAt: r.EvaluationCreatedAt.Time,
		})
	}
	return out
}

func upsertExperiment(ctx context.Context, q sqlx.QueryerContext, systemPrompt string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, upsertExperimentSQL, systemPrompt)
	return id, err
}

func upsertTestCase(ctx context.Context, q sqlx.QueryerContext, experimentID int64, input, referenceAnswer string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, q, &id, upsertTestCaseSQL, experimentID, input, referenceAnswer)
	return id, err
}

func upsertEvaluation(ctx context.Context, e sqlx.ExecerContext, testID int64, modelName, answer string, score eval.EvaluationResponse) error {
	_, err := e.ExecContext(ctx, upsertEvaluationSQL, testID, modelName, answer, score.Accuracy, score.Clarity, score.Relevancy)
	return err
}

// CreateBatchJob records a queued async batch; request is the JSON submitted by the client.
func (s *Store) CreateBatchJob(ctx context.Context, id, systemPrompt string, request []byte) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO evaluation_batches (id, status, system_prompt, request) VALUES ($1, $2, $3, $4)`,
		id, StatusQueued, systemPrompt, request)
	return err
}

func (s *Store) GetBatchJob(ctx context.Context, id string) (*BatchJob, error) {
	var j BatchJob
	err := s.DB.GetContext(ctx, &j, `SELECT id, status, system_prompt, request, result_ref, error, experiment_id, created_at, finished_at
		FROM evaluation_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) MarkBatchRunning(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE evaluation_batches SET status = $2 WHERE id = $1`, id, StatusRunning)
	return err
}

func (s *Store) CompleteBatchJob(ctx context.Context, id, resultRef string, experimentID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE evaluation_batches SET status = $2, result_ref = $3, experiment_id = $4, finished_at = NOW() WHERE id = $1`,
		id, StatusCompleted, resultRef, experimentID)
	return err
}

func (s *Store) FailBatchJob(ctx context.Context, id, msg string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE evaluation_batches SET status = $2, error = $3, finished_at = NOW() WHERE id = $1`,
		id, StatusFailed, msg)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}
