// Package eval runs a batch of test cases through the configured generation
// targets and scores every generated answer with a judge model.
package eval

// TestCase is one prompt input together with the answer it is expected to produce.
type TestCase struct {
	Input           string `json:"input" yaml:"input"`
	ReferenceAnswer string `json:"referenceAnswer" yaml:"referenceAnswer"`
}

// ModelResponse is the answer a single target generated for a test case.
type ModelResponse struct {
	Model  string `json:"model"`
	Answer string `json:"answer"`
}

// EvaluationResponse holds the judge scores for one generated answer. Scores are
// expected in [0,1] but the judge is free to return any number.
type EvaluationResponse struct {
	Accuracy  float64 `json:"Accuracy"`
	Clarity   float64 `json:"Clarity"`
	Relevancy float64 `json:"Relevancy"`
}

// Fallback is the score recorded when judge output cannot be parsed.
func Fallback() EvaluationResponse {
	return EvaluationResponse{}
}

// Batch is the result of one Run. Both slices are indexed by test case and,
// within a test case, by target in configuration order.
type Batch struct {
	ModelResponses   [][]ModelResponse      `json:"modelResponses"`
	ModelEvaluations [][]EvaluationResponse `json:"modelEvaluations"`
}

func newBatch(cases, targets int) *Batch {
	b := &Batch{
		ModelResponses:   make([][]ModelResponse, cases),
		ModelEvaluations: make([][]EvaluationResponse, cases),
	}
	for i := range cases {
		b.ModelResponses[i] = make([]ModelResponse, targets)
		b.ModelEvaluations[i] = make([]EvaluationResponse, targets)
	}
	return b
}
