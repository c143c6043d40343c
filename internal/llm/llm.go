// Package llm wraps the hosted model APIs behind a single text-in/text-out interface.
package llm

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion call. System is sent as the provider's
// instruction context and may be empty.
type Request struct {
	System   string
	Messages []Message
	Model    string
}

// Completer returns the text of the final assistant turn for req.
//
// Implementations return "" with a nil error when the provider answers without
// content. A non-nil error means the call itself failed (network, auth, quota).
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
