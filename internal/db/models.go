package db

import (
	"database/sql"
	"time"
)

// Batch job states.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Experiment struct {
	ID           int64      `json:"experiment_id"`
	Name         string     `json:"experiment_name"`
	SystemPrompt string     `json:"system_prompt"`
	CreatedAt    time.Time  `json:"created_at"`
	TestCases    []TestCase `json:"test_cases"`
}

type TestCase struct {
	ID              int64        `json:"test_id"`
	Input           string       `json:"test_case"`
	ReferenceAnswer string       `json:"reference_answer"`
	Evaluations     []Evaluation `json:"evaluations"`
}

type Evaluation struct {
	ModelName string    `json:"model_name"`
	Answer    string    `json:"answer"`
	Accuracy  float64   `json:"accuracy"`
	Clarity   float64   `json:"clarity"`
	Relevancy float64   `json:"relevancy"`
	CreatedAt time.Time `json:"created_at"`
}

// experimentRow is one row of the experiments ⋈ test_cases ⋈ evaluation_results join.
type experimentRow struct {
	ExperimentID        int64           `db:"experiment_id"`
	ExperimentName      string          `db:"experiment_name"`
	SystemPrompt        string          `db:"system_prompt"`
	ExperimentCreatedAt time.Time       `db:"experiment_created_at"`
	TestID              sql.NullInt64   `db:"test_id"`
	TestCase            sql.NullString  `db:"test_case"`
	ReferenceAnswer     sql.NullString  `db:"reference_answer"`
	ModelName           sql.NullString  `db:"model_name"`
	Answer              sql.NullString  `db:"answer"`
	Accuracy            sql.NullFloat64 `db:"accuracy"`
	Clarity             sql.NullFloat64 `db:"clarity"`
	Relevancy           sql.NullFloat64 `db:"relevancy"`
	EvaluationCreatedAt sql.NullTime    `db:"evaluation_created_at"`
}

type BatchJob struct {
	ID           string         `db:"id"`
	Status       string         `db:"status"`
	SystemPrompt string         `db:"system_prompt"`
	Request      []byte         `db:"request"`
	ResultRef    sql.NullString `db:"result_ref"`
	Error        sql.NullString `db:"error"`
	ExperimentID sql.NullInt64  `db:"experiment_id"`
	CreatedAt    time.Time      `db:"created_at"`
	FinishedAt   sql.NullTime   `db:"finished_at"`
}
