// Package providers defines the completion-service boundary: the client
// interface the pipeline calls, error classification for retry decisions,
// and the concrete OpenAI-compatible implementation.
package providers

import (
	"context"
	"time"
)

// CompletionClient is the external completion service as the pipeline sees
// it. Implementations must classify failures as transient or permanent (see
// errors.go) so callers can decide whether to retry.
type CompletionClient interface {
	// Complete sends role-tagged messages and returns the model's reply.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Name returns the client identifier (e.g. "openai").
	Name() string
}

// Message is one role-tagged prompt message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// CompletionRequest is one request to the completion service.
type CompletionRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (client default if empty).
	Model string `json:"model,omitempty"`

	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"-"`

	// RequestID correlates logs across retries of the same chunk.
	RequestID string `json:"-"`
}

// CompletionResult is the reply to one completion request.
type CompletionResult struct {
	// Reasoning carries chain-of-thought text when the provider returns it
	// separately from the answer; empty otherwise.
	Reasoning string `json:"reasoning,omitempty"`
	Content   string `json:"content"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	ExecutionTime time.Duration `json:"execution_time"`
}
