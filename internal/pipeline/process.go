package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/siftkit/sift/internal/parse"
	"github.com/siftkit/sift/internal/prompts"
	"github.com/siftkit/sift/internal/providers"
	"github.com/siftkit/sift/internal/validate"
)

// ChunkInput is one unit of work for the pipeline.
type ChunkInput struct {
	Document string
	Index    int
	Text     string
}

// Info reports how a chunk was processed, success or not. Retries are
// invisible here except through Attempts and the stats counters.
type Info struct {
	Success      bool              `json:"success"`
	State        State             `json:"state"`
	ErrorCode    string            `json:"error_code,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Report       *validate.Report  `json:"report,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	RequestID    string            `json:"request_id"`
	Attempts     int               `json:"attempts"`
	Tokens       int               `json:"tokens"`
}

// Outcome pairs the validated payload with its Info. Payload is nil exactly
// when Info.Success is false; there is no partial third state.
type Outcome struct {
	Document string            `json:"document"`
	Index    int               `json:"index"`
	Payload  validate.Document `json:"payload,omitempty"`
	Info     Info              `json:"info"`
}

// ProcessChunk runs one chunk through the full state machine. Terminal
// failures come back in Info, never as a Go error, so one bad chunk cannot
// abort a batch.
func (p *Pipeline) ProcessChunk(ctx context.Context, in ChunkInput) *Outcome {
	requestID := uuid.NewString()
	logger := p.logger.With("document", in.Document, "chunk", in.Index, "request_id", requestID)
	out := &Outcome{
		Document: in.Document,
		Index:    in.Index,
		Info:     Info{State: StatePending, RequestID: requestID},
	}

	messages, err := prompts.Render(p.template, map[string]any{
		"Text":       in.Text,
		"Document":   in.Document,
		"ChunkIndex": in.Index,
	})
	if err != nil {
		return p.fail(out, logger, CodeRenderFailed, err)
	}
	out.Info.State = StatePrompted

	result, err := p.complete(ctx, messages, requestID, &out.Info)
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(out, logger, CodeCancelled, ctx.Err())
		}
		return p.fail(out, logger, CodeCompletionFailed, err)
	}
	out.Info.State = StateResponseReceived
	out.Info.Tokens += result.TotalTokens
	p.stats.RecordTokens(result.TotalTokens)
	if result.Reasoning != "" {
		logger.Debug("model reasoning", "reasoning", result.Reasoning)
	}

	parsed, perr := parse.Extract(result.Content)
	if perr != nil {
		out.Info.State = StateParseFailed
		logger.Warn("response did not parse, asking model to reformat", "error", perr)
		parsed, perr = p.reformat(ctx, result.Content, perr, requestID, &out.Info)
	}
	if perr != nil {
		return p.fail(out, logger, CodeParseFailed, perr)
	}
	out.Info.State = StateParsed
	out.Info.Warnings = append(out.Info.Warnings, parsed.Warnings...)

	doc, report := p.validator.Validate(parsed.Payload)
	out.Info.Report = report
	if !report.SchemaValid {
		out.Info.State = StateValidationFailed
		return p.fail(out, logger, CodeSchemaFailed,
			fmt.Errorf("%s", strings.Join(report.Errors, "; ")))
	}
	out.Info.State = StateValidated

	out.Payload = doc
	out.Info.Success = true
	out.Info.State = StateDone
	p.stats.RecordSuccess()
	logger.Debug("chunk processed",
		"attempts", out.Info.Attempts,
		"tokens", out.Info.Tokens,
		"corrections", len(report.Corrections))
	return out
}

// complete calls the completion service, retrying transient failures with
// backoff up to the configured budget. Permanent failures and cancellation
// stop immediately.
func (p *Pipeline) complete(ctx context.Context, messages []providers.Message, requestID string, info *Info) (*providers.CompletionResult, error) {
	var result *providers.CompletionResult
	err := retry.Do(
		func() error {
			info.Attempts++
			p.stats.RecordRequest()
			res, err := p.client.Complete(ctx, &providers.CompletionRequest{
				Messages:    messages,
				Model:       p.cfg.Model,
				Temperature: p.cfg.Temperature,
				MaxTokens:   p.cfg.MaxTokens,
				Timeout:     p.cfg.CallTimeout,
				RequestID:   requestID,
			})
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.cfg.MaxRetries+1),
		retry.Delay(p.cfg.RetryDelay),
		retry.MaxDelay(p.cfg.MaxRetryDelay),
		retry.DelayType(p.cfg.Backoff),
		retry.RetryIf(providers.IsTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reformat issues the single follow-up request allowed after a parse
// failure, asking the model to restate its previous answer as valid JSON.
// Exactly one attempt, regardless of the general retry budget.
func (p *Pipeline) reformat(ctx context.Context, previous string, cause error, requestID string, info *Info) (*parse.Result, error) {
	if ctx.Err() != nil {
		return nil, cause
	}
	info.Attempts++
	p.stats.RecordRequest()
	res, err := p.client.Complete(ctx, &providers.CompletionRequest{
		Messages: []providers.Message{
			{Role: "user", Content: reformatPrompt(p.schema, previous, cause)},
		},
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Timeout:     p.cfg.CallTimeout,
		RequestID:   requestID,
	})
	if err != nil {
		return nil, cause
	}
	info.Tokens += res.TotalTokens
	p.stats.RecordTokens(res.TotalTokens)
	return parse.Extract(res.Content)
}

func reformatPrompt(schema []byte, previous string, cause error) string {
	previous = strings.TrimSpace(previous)
	if len(previous) > 12000 {
		previous = previous[:12000] + "\n...[truncated]"
	}

	return fmt.Sprintf(`Return ONLY valid JSON (no markdown, no commentary) that strictly conforms to this schema.

Schema:
%s

Your previous output:
%s

Problem with it:
%v`, schema, previous, cause)
}

func (p *Pipeline) fail(out *Outcome, logger *slog.Logger, code string, err error) *Outcome {
	out.Info.Success = false
	out.Info.ErrorCode = code
	out.Info.ErrorMessage = err.Error()
	p.stats.RecordFailure(code)
	logger.Warn("chunk failed", "code", code, "state", out.Info.State, "error", err)
	return out
}
