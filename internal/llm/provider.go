// Package llm abstracts the chat-completion provider behind a small
// interface so services and tests do not depend on a vendor SDK.
package llm

import (
	"context"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one completion call. The API key travels with the
// request because credentials are supplied per call by the UI, never
// stored by the service.
type Request struct {
	APIKey      string
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Stream yields the incremental content deltas of one completion.
type Stream interface {
	// Recv returns the next content delta, or io.EOF once the provider
	// has finished the response.
	Recv() (string, error)
	Close() error
}

// Provider issues chat completions.
type Provider interface {
	// Complete performs a single non-streaming completion and returns
	// the assistant message content.
	Complete(ctx context.Context, req Request) (string, error)
	// Stream opens a streaming completion.
	Stream(ctx context.Context, req Request) (Stream, error)
}
