package eval_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/llm"
	"llm-eval-app/internal/mock"
)

const goodScore = `{"Accuracy": 0.8, "Clarity": 0.9, "Relevancy": 0.7}`

func newOrchestrator(t *testing.T, gen, judge llm.Completer, concurrency int) *eval.Orchestrator {
	t.Helper()
	o, err := eval.New(eval.Config{
		Targets: []eval.Target{
			{Model: "llama-3.3-70b-versatile", Client: gen},
			{Name: "mixtral", Model: "mixtral-8x7b-32768", Client: gen},
		},
		Judge:       eval.Judge{Model: "judge-model", Client: judge},
		Concurrency: concurrency,
	}, nil)
	require.NoError(t, err)
	return o
}

func TestRun_SingleTestCaseTwoTargets(t *testing.T) {
	gen := mock.Reply("4")
	judge := mock.Reply(goodScore)
	o := newOrchestrator(t, gen, judge, 0)

	batch, err := o.Run(context.Background(), "You are a calculator.", []eval.TestCase{
		{Input: "2+2?", ReferenceAnswer: "4"},
	})

	require.NoError(t, err)
	require.Len(t, batch.ModelResponses, 1)
	require.Len(t, batch.ModelEvaluations, 1)
	assert.Equal(t, []eval.ModelResponse{
		{Model: "llama-3.3-70b-versatile", Answer: "4"},
		{Model: "mixtral", Answer: "4"},
	}, batch.ModelResponses[0])
	want := eval.EvaluationResponse{Accuracy: 0.8, Clarity: 0.9, Relevancy: 0.7}
	assert.Equal(t, []eval.EvaluationResponse{want, want}, batch.ModelEvaluations[0])
}

func TestRun_RequestsCarryPromptsAndValues(t *testing.T) {
	gen := mock.Reply("four")
	judge := mock.Reply(goodScore)
	o := newOrchestrator(t, gen, judge, 0)

	_, err := o.Run(context.Background(), "Be terse.", []eval.TestCase{{Input: "2+2?", ReferenceAnswer: "4"}})
	require.NoError(t, err)

	genCalls := gen.Requests()
	require.Len(t, genCalls, 2)
	assert.Equal(t, "Be terse.", genCalls[0].System)
	assert.Equal(t, "llama-3.3-70b-versatile", genCalls[0].Model)
	assert.Equal(t, "mixtral-8x7b-32768", genCalls[1].Model)
	require.Len(t, genCalls[0].Messages, 1)
	assert.Equal(t, llm.RoleUser, genCalls[0].Messages[0].Role)
	assert.Equal(t, "Please generate an answer for the following test case: 2+2?", genCalls[0].Messages[0].Content)

	judgeCalls := judge.Requests()
	require.Len(t, judgeCalls, 2)
	assert.Equal(t, eval.DefaultRubric, judgeCalls[0].System)
	assert.Equal(t, "judge-model", judgeCalls[0].Model)
	assert.Equal(t, "Generated Answer: four\n\nReference Answer: 4", judgeCalls[0].Messages[0].Content)
}

func TestRun_ShapeHoldsForManyCases(t *testing.T) {
	for _, concurrency := range []int{0, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			o := newOrchestrator(t, mock.Reply("x"), mock.Reply("not json"), concurrency)
			cases := make([]eval.TestCase, 7)
			for i := range cases {
				cases[i] = eval.TestCase{Input: fmt.Sprint(i)}
			}

			batch, err := o.Run(context.Background(), "", cases)

			require.NoError(t, err)
			require.Len(t, batch.ModelResponses, 7)
			require.Len(t, batch.ModelEvaluations, 7)
			for i := range cases {
				assert.Len(t, batch.ModelResponses[i], 2)
				assert.Len(t, batch.ModelEvaluations[i], 2)
				for _, ev := range batch.ModelEvaluations[i] {
					assert.Equal(t, eval.Fallback(), ev)
				}
			}
		})
	}
}

func TestRun_EmptyAnswerIsNotAnError(t *testing.T) {
	o := newOrchestrator(t, mock.Reply(""), mock.Reply(goodScore), 0)

	batch, err := o.Run(context.Background(), "", []eval.TestCase{{Input: "q", ReferenceAnswer: "a"}})

	require.NoError(t, err)
	assert.Equal(t, "", batch.ModelResponses[0][0].Answer)
	assert.Equal(t, "", batch.ModelResponses[0][1].Answer)
}

func TestRun_NonNumericScoreFallsBack(t *testing.T) {
	o := newOrchestrator(t, mock.Reply("a"), mock.Reply(`{"Accuracy": "high", "Clarity": 0.9, "Relevancy": 0.7}`), 0)

	batch, err := o.Run(context.Background(), "", []eval.TestCase{{Input: "q"}})

	require.NoError(t, err)
	assert.Equal(t, eval.EvaluationResponse{}, batch.ModelEvaluations[0][0])
}

func TestRun_TransportErrorAbortsBatch(t *testing.T) {
	boom := errors.New("429 rate limited")
	var calls atomic.Int32
	gen := &mock.Completer{CompleteFn: func(_ context.Context, req llm.Request) (string, error) {
		if calls.Add(1) == 3 {
			return "", boom
		}
		return "a", nil
	}}

	for _, concurrency := range []int{0, 3} {
		calls.Store(0)
		o := newOrchestrator(t, gen, mock.Reply(goodScore), concurrency)
		batch, err := o.Run(context.Background(), "", []eval.TestCase{{Input: "1"}, {Input: "2"}})

		require.ErrorIs(t, err, boom)
		assert.Nil(t, batch)
	}
}

func TestRun_JudgeTransportErrorAbortsBatch(t *testing.T) {
	boom := errors.New("unauthorized")
	judge := &mock.Completer{CompleteFn: func(context.Context, llm.Request) (string, error) {
		return "", boom
	}}
	o := newOrchestrator(t, mock.Reply("a"), judge, 0)

	_, err := o.Run(context.Background(), "", []eval.TestCase{{Input: "1"}})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "judge test case 0")
}

func TestRun_ParallelPreservesOrder(t *testing.T) {
	// Earlier inputs answer slower so completion order is reversed.
	gen := &mock.Completer{CompleteFn: func(_ context.Context, req llm.Request) (string, error) {
		prompt := req.Messages[0].Content
		idx := prompt[strings.LastIndex(prompt, " ")+1:]
		delay := map[string]time.Duration{"0": 30 * time.Millisecond, "1": 15 * time.Millisecond}[idx]
		time.Sleep(delay)
		return req.Model + ":" + idx, nil
	}}
	o := newOrchestrator(t, gen, mock.Reply(goodScore), 8)

	batch, err := o.Run(context.Background(), "", []eval.TestCase{{Input: "0"}, {Input: "1"}, {Input: "2"}})

	require.NoError(t, err)
	for i := range 3 {
		assert.Equal(t, fmt.Sprintf("llama-3.3-70b-versatile:%d", i), batch.ModelResponses[i][0].Answer)
		assert.Equal(t, fmt.Sprintf("mixtral-8x7b-32768:%d", i), batch.ModelResponses[i][1].Answer)
		assert.Equal(t, "mixtral", batch.ModelResponses[i][1].Model)
	}
}

func TestNew_Validation(t *testing.T) {
	c := mock.Reply("")

	_, err := eval.New(eval.Config{Judge: eval.Judge{Model: "j", Client: c}}, nil)
	assert.Error(t, err)

	_, err = eval.New(eval.Config{Targets: []eval.Target{{Model: "m"}}, Judge: eval.Judge{Model: "j", Client: c}}, nil)
	assert.Error(t, err)

	_, err = eval.New(eval.Config{Targets: []eval.Target{{Model: "m", Client: c}}}, nil)
	assert.Error(t, err)

	// Two targets reporting the same name would collide when saved.
	_, err = eval.New(eval.Config{
		Targets: []eval.Target{{Model: "m", Client: c}, {Name: "m", Model: "other", Client: c}},
		Judge:   eval.Judge{Model: "j", Client: c},
	}, nil)
	assert.ErrorContains(t, err, `duplicate target name "m"`)

	o, err := eval.New(eval.Config{Targets: []eval.Target{{Model: "m", Client: c}}, Judge: eval.Judge{Model: "j", Client: c}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, o.TargetNames())
}

func TestGenerationPrompt(t *testing.T) {
	assert.Equal(t, "Q: 2+2?", eval.GenerationPrompt("Q: {input}", "2+2?"))
	assert.Equal(t, "Answer this:\n2+2?", eval.GenerationPrompt("Answer this:", "2+2?"))
}
