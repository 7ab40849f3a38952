package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/siftkit/sift/internal/config"
	"github.com/siftkit/sift/internal/pipeline"
	"github.com/siftkit/sift/internal/prompts"
	"github.com/siftkit/sift/internal/providers"
	"github.com/siftkit/sift/internal/segment"
)

var (
	extractTemplate string
	extractProvider string
	extractName     string
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract structured records from a text file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, name, err := readInput(args)
		if err != nil {
			return err
		}
		if extractName != "" {
			name = extractName
		}

		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		p, err := buildPipeline(cfg, slog.Default())
		if err != nil {
			return err
		}

		results, err := p.ProcessDocument(cmd.Context(), name, text)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}

		stats := p.Stats()
		slog.Info("extraction finished",
			"chunks", len(results),
			"requests", stats.Requests,
			"successes", stats.Successes,
			"tokens", stats.Tokens)
		for code, n := range stats.Failures {
			slog.Warn("failures", "code", code, "count", n)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractTemplate, "template", "t", "",
		"preset name or template YAML path (default: from config)")
	extractCmd.Flags().StringVarP(&extractProvider, "provider", "p", "",
		"provider name from config (default: from config)")
	extractCmd.Flags().StringVarP(&extractName, "name", "n", "",
		"document name used in results (default: file name or \"stdin\")")
}

func readInput(args []string) (text, name string, err error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Base(args[0]), nil
}

// buildPipeline wires configuration into a ready pipeline: provider lookup,
// template resolution, segmenter bounds, retry budget.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	registry, err := providersFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	providerName := extractProvider
	if providerName == "" {
		providerName = cfg.Defaults.Provider
	}
	pcfg, ok := cfg.GetProvider(providerName)
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", providerName)
	}
	client, err := registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	templateRef := extractTemplate
	if templateRef == "" {
		templateRef = cfg.Extraction.Template
	}
	def, err := loadTemplate(templateRef)
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Config{
		Client:              client,
		Template:            def,
		Model:               pcfg.Model,
		Temperature:         cfg.Defaults.Temperature,
		MaxTokens:           cfg.Defaults.MaxTokens,
		CallTimeout:         time.Duration(cfg.Defaults.TimeoutSeconds) * time.Second,
		MaxRetries:          uint(cfg.Extraction.MaxRetries),
		RetryDelay:          time.Duration(cfg.Extraction.RetryDelaySeconds) * time.Second,
		SimilarityThreshold: cfg.Extraction.SimilarityThreshold,
		Workers:             cfg.Defaults.MaxWorkers,
		Segmenter: segment.Config{
			MaxTokens:     cfg.Segmenter.MaxTokens,
			OverlapTokens: cfg.Segmenter.OverlapTokens,
		},
		Logger: logger,
	})
}

func providersFromConfig(cfg *config.Config, logger *slog.Logger) (*providers.Registry, error) {
	return providers.NewRegistryFromConfig(cfg.ToRegistryConfig(), logger)
}

func loadTemplate(ref string) (*prompts.Definition, error) {
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") {
		return prompts.Load(ref)
	}
	return prompts.Preset(ref)
}
