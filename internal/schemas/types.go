// Package schemas holds the JSON bodies exchanged over the HTTP API.
package schemas

import (
	"time"

	"llm-eval-app/internal/eval"
)

type EvaluateRequest struct {
	SystemRole string          `json:"systemRole" yaml:"systemRole"`
	TestCases  []eval.TestCase `json:"testCases" yaml:"testCases"`
}

type EvaluateResponse struct {
	eval.Batch
	ExperimentID *int64 `json:"experimentId,omitempty"`
}

// SaveExperimentRequest persists a batch previously returned by /evaluate.
type SaveExperimentRequest struct {
	SystemRole       string                      `json:"systemRole"`
	TestCases        []eval.TestCase             `json:"testCases"`
	ModelResponses   [][]eval.ModelResponse      `json:"modelResponses"`
	ModelEvaluations [][]eval.EvaluationResponse `json:"modelEvaluations"`
}

type SaveExperimentResponse struct {
	ExperimentID int64 `json:"experimentId"`
}

type BatchCreated struct {
	BatchID string `json:"batchId"`
	Status  string `json:"status"`
}

type BatchStatus struct {
	BatchID      string      `json:"batchId"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	FinishedAt   *time.Time  `json:"finishedAt,omitempty"`
	ExperimentID *int64      `json:"experimentId,omitempty"`
	Error        string      `json:"error,omitempty"`
	Result       *eval.Batch `json:"result,omitempty"`
}
