// Package llm wraps the Gemini API behind a small interface so domain
// services can generate text without knowing the backend, and so tests can
// substitute a stub. Services treat a nil client or a failed call as a signal
// to fall back to their deterministic templates.
package llm

import "context"

// Request describes a single generation call.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int32
	// JSON asks the model to return a raw JSON document.
	JSON bool
}

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}
