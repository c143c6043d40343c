// Package mock provides function-field test doubles for the service interfaces.
package mock

import (
	"context"
	"sync"

	"llm-eval-app/internal/llm"
)

var _ llm.Completer = (*Completer)(nil)

// Completer is a mock llm.Completer that records every request it receives.
type Completer struct {
	CompleteFn func(ctx context.Context, req llm.Request) (string, error)

	mu    sync.Mutex
	Calls []llm.Request
}

func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, req)
	c.mu.Unlock()
	return c.CompleteFn(ctx, req)
}

// Requests returns a copy of the recorded requests.
func (c *Completer) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request(nil), c.Calls...)
}

// Reply returns a Completer that always answers text.
func Reply(text string) *Completer {
	return &Completer{CompleteFn: func(context.Context, llm.Request) (string, error) {
		return text, nil
	}}
}
