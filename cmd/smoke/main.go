package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"llm-eval-app/internal/schemas"
)

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API bearer token")
	waitBatch := flag.Duration("wait-batch", 2*time.Minute, "How long to poll for the async batch")
	skipAsync := flag.Bool("skip-async", false, "Only exercise the synchronous /evaluate endpoint")
	flag.Parse()

	httpc := &http.Client{Timeout: 2 * time.Minute}

	req := map[string]any{
		"systemRole": "You are a concise math tutor.",
		"testCases": []map[string]string{
			{"input": "2+2?", "referenceAnswer": "4"},
			{"input": "What is the square root of 81?", "referenceAnswer": "9"},
		},
	}

	// 1) Synchronous evaluation
	var evaluated schemas.EvaluateResponse
	if err := postJSON(httpc, *baseFlag+"/evaluate?save=true", *tokenFlag, req, http.StatusOK, &evaluated); err != nil {
		fatalf("evaluate: %v", err)
	}
	if len(evaluated.ModelResponses) != 2 || len(evaluated.ModelEvaluations) != 2 {
		fatalf("evaluate: expected 2 test cases, got %d/%d", len(evaluated.ModelResponses), len(evaluated.ModelEvaluations))
	}
	for i := range evaluated.ModelResponses {
		if len(evaluated.ModelResponses[i]) != len(evaluated.ModelEvaluations[i]) {
			fatalf("evaluate: test case %d has mismatched responses and evaluations", i)
		}
	}
	fmt.Printf("✅ Evaluated: %s\n", compactJSON(evaluated))

	// 2) Empty batch is rejected
	if err := postJSON(httpc, *baseFlag+"/evaluate", *tokenFlag, map[string]any{"testCases": []any{}}, http.StatusBadRequest, nil); err != nil {
		fatalf("empty batch: %v", err)
	}
	fmt.Println("✅ Empty batch rejected")

	if !*skipAsync {
		// 3) Async batch through the worker
		var created schemas.BatchCreated
		if err := postJSON(httpc, *baseFlag+"/batches", *tokenFlag, req, http.StatusAccepted, &created); err != nil {
			fatalf("create batch: %v", err)
		}
		fmt.Printf("✅ Enqueued batch %s\n", created.BatchID)

		deadline := time.Now().Add(*waitBatch)
		for {
			var st schemas.BatchStatus
			if err := getJSON(httpc, fmt.Sprintf("%s/batches/%s", *baseFlag, created.BatchID), *tokenFlag, &st); err != nil {
				fatalf("get batch: %v", err)
			}
			if st.Status == "completed" {
				fmt.Printf("✅ Batch completed: %s\n", compactJSON(st))
				break
			}
			if st.Status == "failed" {
				fatalf("batch failed: %s", st.Error)
			}
			if time.Now().After(deadline) {
				fatalf("batch still %s after %s", st.Status, *waitBatch)
			}
			time.Sleep(3 * time.Second)
		}
	}

	// 4) Experiments listing
	var exps []map[string]any
	if err := getJSON(httpc, *baseFlag+"/experiments", *tokenFlag, &exps); err != nil {
		fatalf("list experiments: %v", err)
	}
	fmt.Printf("✅ %d experiment(s) stored\n", len(exps))

	fmt.Println("🎉 Smoke run OK")
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func postJSON(c *http.Client, url, bearer string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("POST %s -> %d: %s", url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("GET %s -> %d: %s", url, res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func compactJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func fatalf(format string, args ...any) {
	fmt.Printf("❌ "+format+"\n", args...)
	os.Exit(1)
}
