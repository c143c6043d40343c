package eval

import (
	"errors"
	"fmt"
	"strings"

	"llm-eval-app/internal/llm"
)

// DefaultPrompt wraps the test case input; {input} is replaced with it.
const DefaultPrompt = "Please generate an answer for the following test case: {input}"

// DefaultRubric is the judge system instruction.
const DefaultRubric = "You are an evaluator that checks answers based on the following criteria: " +
	"Accuracy, Clarity, Relevancy. Only return the answer in JSON format: " +
	"{Accuracy: x, Clarity: y, Relevancy: z} with x,y,z being a number between 0 to 1 " +
	"depending on the evaluation. Do not include any other text"

const inputPlaceholder = "{input}"

// Target is one generation model. Name is reported in ModelResponse.Model and
// defaults to Model.
type Target struct {
	Name   string
	Model  string
	Client llm.Completer
}

// Judge scores generated answers. Instruction defaults to DefaultRubric.
type Judge struct {
	Model       string
	Client      llm.Completer
	Instruction string
}

// Config describes a run. Targets are processed in order and Concurrency <= 1
// keeps every model call strictly sequential.
type Config struct {
	Targets     []Target
	Judge       Judge
	Prompt      string
	Concurrency int
}

var errNoTargets = errors.New("eval: at least one target is required")

func (c *Config) normalize() error {
	if len(c.Targets) == 0 {
		return errNoTargets
	}
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Model == "" {
			return fmt.Errorf("eval: target %d has no model", i)
		}
		if t.Client == nil {
			return fmt.Errorf("eval: target %s has no client", t.Model)
		}
		if t.Name == "" {
			t.Name = t.Model
		}
		if seen[t.Name] {
			return fmt.Errorf("eval: duplicate target name %q", t.Name)
		}
		seen[t.Name] = true
	}
	if c.Judge.Model == "" || c.Judge.Client == nil {
		return errors.New("eval: judge needs a model and a client")
	}
	if c.Judge.Instruction == "" {
		c.Judge.Instruction = DefaultRubric
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	return nil
}

// GenerationPrompt renders template for input. A template without the {input}
// placeholder gets the input appended on a new line.
func GenerationPrompt(template, input string) string {
	if !strings.Contains(template, inputPlaceholder) {
		return template + "\n" + input
	}
	return strings.ReplaceAll(template, inputPlaceholder, input)
}

// JudgePrompt is the user payload sent to the judge.
func JudgePrompt(answer, reference string) string {
	return fmt.Sprintf("Generated Answer: %s\n\nReference Answer: %s", answer, reference)
}
