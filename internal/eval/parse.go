package eval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// Reasons a judge reply is rejected.
var (
	ErrNoObject  = errors.New("no {...} object in judge output")
	ErrMalformed = errors.New("judge output is not a valid object")
	ErrNotNumber = errors.New("score is not a number")
)

var (
	// fenceRe matches a code fence and the language tag glued to it.
	fenceRe  = regexp.MustCompile("```[A-Za-z0-9_+-]*")
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)

	newlines = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")
)

// Sanitize strips markdown code fences, stray backticks and newlines from raw
// judge output. Clean single-line JSON comes back unchanged.
func Sanitize(raw string) string {
	s := fenceRe.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, "`", "")
	s = newlines.Replace(s)
	return strings.TrimSpace(s)
}

// ExtractObject returns the span from the first '{' to the last '}' of s.
func ExtractObject(s string) (string, bool) {
	m := objectRe.FindString(s)
	return m, m != ""
}

// ParseResult is the outcome of parsing judge output. Err is nil on success and
// names the reason otherwise, in which case Evaluation is the fallback.
type ParseResult struct {
	Evaluation EvaluationResponse
	Err        error
}

func (r ParseResult) OK() bool { return r.Err == nil }

// ParseEvaluation turns raw judge output into scores. The decoder accepts bare
// keys (the rubric asks for {Accuracy: x, ...}) and trailing commas. It never
// panics.
func ParseEvaluation(raw string) ParseResult {
	obj, ok := ExtractObject(Sanitize(raw))
	if !ok {
		return ParseResult{Evaluation: Fallback(), Err: ErrNoObject}
	}

	var fields map[string]any
	if err := json5.Unmarshal([]byte(obj), &fields); err != nil {
		return ParseResult{Evaluation: Fallback(), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	var out EvaluationResponse
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"Accuracy", &out.Accuracy},
		{"Clarity", &out.Clarity},
		{"Relevancy", &out.Relevancy},
	} {
		v, ok := fields[f.key].(float64)
		if !ok {
			return ParseResult{Evaluation: Fallback(), Err: fmt.Errorf("%w: %s=%v", ErrNotNumber, f.key, fields[f.key])}
		}
		*f.dst = v
	}
	return ParseResult{Evaluation: out}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoObject):
		return "no_object"
	case errors.Is(err, ErrNotNumber):
		return "not_number"
	default:
		return "malformed"
	}
}
