package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI-compatible client. BaseURL
// covers any endpoint speaking the chat-completions protocol.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string // Optional (compatible endpoints, tests)
	RateLimit   int    // Requests per minute
	Timeout     time.Duration
	HTTPClient  *http.Client // Optional (tests)
	Temperature float64
}

// OpenAIClient implements CompletionClient using the official OpenAI SDK.
type OpenAIClient struct {
	apiKey      string
	model       string
	temperature float64
	limiter     *RateLimiter
	client      openai.Client
}

// NewOpenAIClient creates a client. SDK-level retries are disabled: the
// pipeline owns the retry budget and must see every transient failure.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     NewRateLimiter(cfg.RateLimit),
		client:      openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	if req == nil || len(req.Messages) == 0 {
		return nil, Permanent(fmt.Errorf("request requires at least one message"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, Transient(err)
	}

	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	var callOpts []option.RequestOption
	if req.Timeout > 0 {
		callOpts = append(callOpts, option.WithRequestTimeout(req.Timeout))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, callOpts...)
	if err != nil {
		return nil, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, Transient(fmt.Errorf("completion response has no choices"))
	}

	// The chat completions surface returns no separate reasoning content,
	// so Reasoning stays empty for this client.
	return &CompletionResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		Provider:         OpenAIName,
		ModelUsed:        resp.Model,
		RequestID:        req.RequestID,
		ExecutionTime:    time.Since(start),
	}, nil
}

// classify maps SDK errors onto the transient/permanent taxonomy.
func (c *OpenAIClient) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			c.limiter.Record429(parseRetryAfter(apiErr))
			return Transient(err)
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return Transient(err)
		default:
			return Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Network-level failures (timeouts, resets) are worth retrying.
	return Transient(err)
}

func parseRetryAfter(apiErr *openai.Error) time.Duration {
	if apiErr.Response == nil {
		return 0
	}
	header := apiErr.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	d, err := time.ParseDuration(header + "s")
	if err != nil {
		return 0
	}
	return d
}

var _ CompletionClient = (*OpenAIClient)(nil)
