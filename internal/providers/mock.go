package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a CompletionClient for tests. Responses are scripted in
// order; after the script runs out the last entry repeats.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	Responses    []string // yielded in request order
	Reasoning    string   // attached to every result when set
	FailFirst    int      // first N requests fail transiently
	PermanentErr error    // returned on every request when set

	mu           sync.Mutex
	requestCount atomic.Int64
	requests     []*CompletionRequest
}

// NewMockClient creates a mock with one canned response.
func NewMockClient(responses ...string) *MockClient {
	if len(responses) == 0 {
		responses = []string{`{}`}
	}
	return &MockClient{Responses: responses}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Complete replays the next scripted response.
func (c *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if c.PermanentErr != nil {
		return nil, Permanent(c.PermanentErr)
	}
	if int(count) <= c.FailFirst {
		return nil, Transient(fmt.Errorf("mock transient failure %d", count))
	}

	idx := int(count) - 1 - c.FailFirst
	if idx >= len(c.Responses) {
		idx = len(c.Responses) - 1
	}
	content := c.Responses[idx]

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	completionTokens := len(content) / 4

	return &CompletionResult{
		Reasoning:        c.Reasoning,
		Content:          content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Provider:         MockClientName,
		ModelUsed:        req.Model,
		RequestID:        req.RequestID,
	}, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of every request seen, in order.
func (c *MockClient) Requests() []*CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*CompletionRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset clears the counter and the recorded requests.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestCount.Store(0)
	c.requests = nil
}

var _ CompletionClient = (*MockClient)(nil)
