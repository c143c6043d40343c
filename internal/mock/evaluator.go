package mock

import (
	"context"

	"llm-eval-app/internal/eval"
)

// Evaluator is a mock of the orchestrator's Run method.
type Evaluator struct {
	RunFn func(ctx context.Context, systemRole string, testCases []eval.TestCase) (*eval.Batch, error)
}

func (e *Evaluator) Run(ctx context.Context, systemRole string, testCases []eval.TestCase) (*eval.Batch, error) {
	return e.RunFn(ctx, systemRole, testCases)
}
