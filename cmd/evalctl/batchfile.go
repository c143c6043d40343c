package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"llm-eval-app/internal/schemas"
)

// loadBatchFile reads an evaluate request from YAML:
//
//	systemRole: You are a concise math tutor.
//	testCases:
//	  - input: 2+2?
//	    referenceAnswer: "4"
func loadBatchFile(path string) (schemas.EvaluateRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return schemas.EvaluateRequest{}, err
	}
	return parseBatchFile(b)
}

func parseBatchFile(b []byte) (schemas.EvaluateRequest, error) {
	var req schemas.EvaluateRequest
	if err := yaml.Unmarshal(b, &req); err != nil {
		return schemas.EvaluateRequest{}, fmt.Errorf("parse batch file: %w", err)
	}
	if len(req.TestCases) == 0 {
		return schemas.EvaluateRequest{}, errors.New("batch file has no test cases")
	}
	return req, nil
}
