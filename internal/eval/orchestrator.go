package eval

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"llm-eval-app/internal/llm"
)

// Orchestrator generates an answer per (test case, target) and scores it with
// the judge. It keeps no state between runs.
type Orchestrator struct {
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
}

// New validates cfg and fills in the default prompt and rubric.
func New(cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	cfg.Targets = append([]Target(nil), cfg.Targets...)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, logger: logger, metrics: NewMetrics()}, nil
}

// TargetNames returns the target identifiers in output order.
func (o *Orchestrator) TargetNames() []string {
	names := make([]string, len(o.cfg.Targets))
	for i, t := range o.cfg.Targets {
		names[i] = t.Name
	}
	return names
}

// Run evaluates testCases against every target. Unparseable judge output and
// empty answers never fail the batch; an error from a model call aborts it and
// no partial batch is returned.
func (o *Orchestrator) Run(ctx context.Context, systemRole string, testCases []TestCase) (*Batch, error) {
	o.metrics.batch()
	batch := newBatch(len(testCases), len(o.cfg.Targets))
	o.logger.Info("evaluation batch started",
		zap.Int("test_cases", len(testCases)),
		zap.Strings("targets", o.TargetNames()),
		zap.Int("concurrency", o.cfg.Concurrency))

	if o.cfg.Concurrency <= 1 {
		for i, tc := range testCases {
			for j := range o.cfg.Targets {
				if err := o.runOne(ctx, batch, systemRole, i, j, tc); err != nil {
					return nil, err
				}
			}
		}
		return batch, nil
	}

	// Each unit writes only its own [i][j] slot.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, tc := range testCases {
		for j := range o.cfg.Targets {
			g.Go(func() error {
				return o.runOne(gctx, batch, systemRole, i, j, tc)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batch, nil
}

func (o *Orchestrator) runOne(ctx context.Context, batch *Batch, systemRole string, i, j int, tc TestCase) error {
	target := o.cfg.Targets[j]

	answer, err := o.generate(ctx, target, systemRole, tc.Input)
	if err != nil {
		return fmt.Errorf("generate test case %d with %s: %w", i, target.Name, err)
	}
	batch.ModelResponses[i][j] = ModelResponse{Model: target.Name, Answer: answer}

	score, err := o.evaluate(ctx, answer, tc.ReferenceAnswer)
	if err != nil {
		return fmt.Errorf("judge test case %d for %s: %w", i, target.Name, err)
	}
	batch.ModelEvaluations[i][j] = score
	return nil
}

func (o *Orchestrator) generate(ctx context.Context, target Target, systemRole, input string) (string, error) {
	o.metrics.call("generate", target.Model)
	answer, err := target.Client.Complete(ctx, llm.Request{
		System:   systemRole,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: GenerationPrompt(o.cfg.Prompt, input)}},
		Model:    target.Model,
	})
	if err != nil {
		return "", err
	}
	if answer == "" {
		o.logger.Debug("target returned no content", zap.String("target", target.Name))
	}
	return answer, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, answer, reference string) (EvaluationResponse, error) {
	judge := o.cfg.Judge
	o.metrics.call("judge", judge.Model)
	raw, err := judge.Client.Complete(ctx, llm.Request{
		System:   judge.Instruction,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: JudgePrompt(answer, reference)}},
		Model:    judge.Model,
	})
	if err != nil {
		return EvaluationResponse{}, err
	}

	res := ParseEvaluation(raw)
	if !res.OK() {
		o.metrics.fallback(reasonLabel(res.Err))
		o.logger.Warn("judge output rejected, using fallback score",
			zap.Error(res.Err),
			zap.String("raw", raw))
		return Fallback(), nil
	}
	return res.Evaluation, nil
}
