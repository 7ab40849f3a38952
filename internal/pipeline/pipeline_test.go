package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/siftkit/sift/internal/prompts"
	"github.com/siftkit/sift/internal/providers"
)

func testTemplate() *prompts.Definition {
	return &prompts.Definition{
		Name: "test",
		OutputSchema: map[string]any{
			"type":     "object",
			"required": []any{"entities", "relations"},
			"properties": map[string]any{
				"entities": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"id", "type", "name"},
						"properties": map[string]any{
							"id":   map[string]any{"type": "string"},
							"type": map[string]any{"type": "string"},
							"name": map[string]any{"type": "string"},
						},
					},
				},
				"relations": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"source", "target", "type"},
						"properties": map[string]any{
							"source": map[string]any{"type": "string"},
							"target": map[string]any{"type": "string"},
							"type":   map[string]any{"type": "string"},
						},
					},
				},
			},
		},
		User: "Extract from: {{.Text}}",
	}
}

func noDelay(_ uint, _ error, _ *retry.Config) time.Duration { return 0 }

func newTestPipeline(t *testing.T, client providers.CompletionClient) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Client:     client,
		Template:   testTemplate(),
		MaxRetries: 3,
		Backoff:    noDelay,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

const happyResponse = `Here is the result: {"entities":[{"id":"E1","type":"Person","name":"张三"},{"id":"E2","type":"Organization","name":"Acme"}],"relations":[{"source":"E1","target":"E2","type":"works_for"}]}`

func TestProcessChunkHappyPath(t *testing.T) {
	client := providers.NewMockClient(happyResponse)
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{
		Document: "doc", Index: 0, Text: "张三在Acme公司工作",
	})
	if !out.Info.Success {
		t.Fatalf("info = %+v, want success", out.Info)
	}
	if out.Info.State != StateDone {
		t.Errorf("state = %s, want DONE", out.Info.State)
	}
	if !out.Info.Report.SchemaValid || !out.Info.Report.RulesValid {
		t.Errorf("report = %+v, want fully valid", out.Info.Report)
	}
	if len(out.Info.Report.Corrections) != 0 {
		t.Errorf("corrections = %v, want none", out.Info.Report.Corrections)
	}

	ents, _ := out.Payload["entities"].([]any)
	if len(ents) != 2 {
		t.Fatalf("entities = %v", out.Payload["entities"])
	}
	first, _ := ents[0].(map[string]any)
	if first["name"] != "张三" {
		t.Errorf("first entity = %v", first)
	}
	rels, _ := out.Payload["relations"].([]any)
	if len(rels) != 1 {
		t.Errorf("relations = %v", out.Payload["relations"])
	}

	stats := p.Stats()
	if stats.Requests != 1 || stats.Successes != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestProcessChunkUnrecoverableParse(t *testing.T) {
	// Truncated mid-nesting both times: the original response and the one
	// reformat follow-up.
	client := providers.NewMockClient(`{"entities": [ { "id": "E1"`)
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{Document: "doc", Text: "x"})
	if out.Info.Success || out.Payload != nil {
		t.Fatalf("outcome = %+v, want failure with nil payload", out)
	}
	if out.Info.ErrorCode != CodeParseFailed {
		t.Errorf("code = %q, want %q", out.Info.ErrorCode, CodeParseFailed)
	}
	if got := client.RequestCount(); got != 2 {
		t.Errorf("requests = %d, want original plus exactly one reformat", got)
	}
	if p.Stats().Failures[CodeParseFailed] != 1 {
		t.Errorf("stats = %+v", p.Stats())
	}
}

func TestProcessChunkReformatRecovers(t *testing.T) {
	client := providers.NewMockClient(
		"Sure! The entities are Zhang San and Acme.", // no JSON at all
		`{"entities":[{"id":"E1","type":"Person","name":"Zhang San"}],"relations":[]}`,
	)
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{Document: "doc", Text: "x"})
	if !out.Info.Success {
		t.Fatalf("info = %+v, want success after reformat", out.Info)
	}
	if got := client.RequestCount(); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	reqs := client.Requests()
	if len(reqs[1].Messages) != 1 || reqs[1].Messages[0].Role != "user" {
		t.Fatalf("reformat request = %+v", reqs[1].Messages)
	}
}

func TestProcessChunkRetriesTransient(t *testing.T) {
	client := providers.NewMockClient(happyResponse)
	client.FailFirst = 2
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{Document: "doc", Text: "x"})
	if !out.Info.Success {
		t.Fatalf("info = %+v, want success after retries", out.Info)
	}
	if out.Info.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", out.Info.Attempts)
	}
	if p.Stats().Requests != 3 {
		t.Errorf("stats = %+v", p.Stats())
	}
}

func TestProcessChunkPermanentFailureNotRetried(t *testing.T) {
	client := providers.NewMockClient()
	client.PermanentErr = fmt.Errorf("invalid api key")
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{Document: "doc", Text: "x"})
	if out.Info.Success || out.Info.ErrorCode != CodeCompletionFailed {
		t.Fatalf("info = %+v, want completion_failed", out.Info)
	}
	if got := client.RequestCount(); got != 1 {
		t.Errorf("requests = %d, want no retries for permanent failure", got)
	}
}

func TestProcessChunkSchemaFailureIsTerminal(t *testing.T) {
	// Entities missing required fields; structurally invalid and not
	// correctable, so the chunk fails without any retry.
	client := providers.NewMockClient(`{"entities":[{"id":"E1"}],"relations":[]}`)
	p := newTestPipeline(t, client)

	out := p.ProcessChunk(context.Background(), ChunkInput{Document: "doc", Text: "x"})
	if out.Info.Success || out.Info.ErrorCode != CodeSchemaFailed {
		t.Fatalf("info = %+v, want schema_validation_failed", out.Info)
	}
	if out.Info.Report == nil || out.Info.Report.SchemaValid {
		t.Errorf("report = %+v, want schema invalid", out.Info.Report)
	}
	if got := client.RequestCount(); got != 1 {
		t.Errorf("requests = %d, validation failures must not retry", got)
	}
}

func TestProcessBatchOrderAndIsolation(t *testing.T) {
	// The second chunk gets garbage twice (initial response and reformat
	// follow-up) and fails; siblings succeed.
	client := providers.NewMockClient(happyResponse, "no json here", "still no json", happyResponse)
	p := newTestPipeline(t, client)
	p.cfg.Workers = 1 // deterministic response-to-chunk assignment

	inputs := []ChunkInput{
		{Document: "doc", Index: 0, Text: "a"},
		{Document: "doc", Index: 1, Text: "b"},
		{Document: "doc", Index: 2, Text: "c"},
	}
	results := p.ProcessBatch(context.Background(), inputs)
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	for i, res := range results {
		if res.Index != inputs[i].Index {
			t.Errorf("result %d has index %d", i, res.Index)
		}
	}
	if !results[0].Info.Success {
		t.Errorf("chunk 0 = %+v, want success", results[0].Info)
	}
	if results[1].Info.Success {
		t.Error("chunk 1 should fail")
	}
	if !results[2].Info.Success {
		t.Errorf("chunk 2 = %+v, want success despite sibling failure", results[2].Info)
	}
}

func TestProcessBatchCancellation(t *testing.T) {
	client := providers.NewMockClient(happyResponse)
	p := newTestPipeline(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.ProcessBatch(ctx, []ChunkInput{
		{Document: "doc", Index: 0, Text: "a"},
		{Document: "doc", Index: 1, Text: "b"},
	})
	for i, res := range results {
		if res.Info.Success || res.Info.ErrorCode != CodeCancelled {
			t.Errorf("result %d = %+v, want cancelled", i, res.Info)
		}
	}
}

func TestProcessDocumentSegmentsAndOrders(t *testing.T) {
	client := providers.NewMockClient(happyResponse)
	p, err := New(Config{
		Client:   client,
		Template: testTemplate(),
		Backoff:  noDelay,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	results, err := p.ProcessDocument(context.Background(), "doc", "Ada met Grace. Grace met Edsger.")
	if err != nil {
		t.Fatalf("ProcessDocument: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	for i, res := range results {
		if res.Index != i {
			t.Errorf("result %d has chunk index %d", i, res.Index)
		}
	}
}

func TestNewConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"nil client", Config{Template: testTemplate()}},
		{"nil template", Config{Client: providers.NewMockClient()}},
		{"bad rule option", func() Config {
			def := testTemplate()
			def.Options = map[string]any{"max_entities_per_chunk": "lots"}
			return Config{Client: providers.NewMockClient(), Template: def}
		}()},
		{"unbound template variable", func() Config {
			def := testTemplate()
			def.User = "{{.NoSuchVariable}}"
			return Config{Client: providers.NewMockClient(), Template: def}
		}()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Error("expected construction error")
			}
		})
	}
}
