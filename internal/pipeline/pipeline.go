// Package pipeline sequences render, completion, parse, and validation per
// chunk, with retry and failure classification, and fans chunks out over a
// bounded worker pool.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/siftkit/sift/internal/prompts"
	"github.com/siftkit/sift/internal/providers"
	"github.com/siftkit/sift/internal/segment"
	"github.com/siftkit/sift/internal/validate"
)

// ErrConfig marks invalid pipeline configuration, surfaced at construction.
var ErrConfig = errors.New("invalid pipeline configuration")

// Config assembles one pipeline run.
type Config struct {
	Client   providers.CompletionClient
	Template *prompts.Definition

	Model       string
	Temperature float64
	MaxTokens   int
	CallTimeout time.Duration

	// MaxRetries bounds additional completion attempts after the first.
	MaxRetries    uint
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Backoff is injected so tests run without sleeping. Defaults to
	// exponential backoff with jitter.
	Backoff retry.DelayTypeFunc

	SimilarityThreshold float64
	Workers             int
	Segmenter           segment.Config

	Logger *slog.Logger
}

// Pipeline is safe for concurrent use: the template, validator, and
// segmenter are read-only after construction, and Stats is internally
// synchronized.
type Pipeline struct {
	cfg       Config
	client    providers.CompletionClient
	template  *prompts.Definition
	schema    []byte
	validator *validate.Validator
	segmenter *segment.Segmenter
	stats     *Stats
	logger    *slog.Logger
}

// New validates the whole configuration up front. Anything wrong with the
// template, schema, rules, or segmenter fails here, never per chunk.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: completion client is required", ErrConfig)
	}
	if cfg.Template == nil {
		return nil, fmt.Errorf("%w: template is required", ErrConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Backoff == nil {
		cfg.Backoff = retry.BackOffDelay
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Segmenter.MaxTokens == 0 {
		cfg.Segmenter = segment.Config{MaxTokens: 2000, OverlapTokens: 200}
	}

	schema, err := cfg.Template.SchemaJSON()
	if err != nil {
		return nil, err
	}
	rules, err := validate.BuildRules(cfg.SimilarityThreshold, cfg.Template.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	validator, err := validate.New(schema, rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	segmenter, err := segment.New(cfg.Segmenter, cfg.Logger)
	if err != nil {
		return nil, err
	}

	// Render once with placeholder variables so broken template text is a
	// construction failure.
	if _, err := prompts.Render(cfg.Template, sampleVars()); err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:       cfg,
		client:    cfg.Client,
		template:  cfg.Template,
		schema:    schema,
		validator: validator,
		segmenter: segmenter,
		stats:     NewStats(),
		logger:    cfg.Logger,
	}, nil
}

// Stats returns a snapshot of the run counters.
func (p *Pipeline) Stats() StatsSnapshot {
	return p.stats.Snapshot()
}

func sampleVars() map[string]any {
	return map[string]any{
		"Text":       "sample",
		"Document":   "sample",
		"ChunkIndex": 0,
	}
}
