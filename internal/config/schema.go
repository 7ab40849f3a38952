package config

// Config holds sift configuration. Loaded from config.yaml with SIFT_
// environment overrides; API keys use ${ENV_VAR} syntax resolved at load.
type Config struct {
	Providers  map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults   DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Segmenter  SegmenterCfg           `mapstructure:"segmenter" yaml:"segmenter"`
	Extraction ExtractionCfg          `mapstructure:"extraction" yaml:"extraction"`
}

// ProviderCfg configures one completion provider.
type ProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "openai"
	Model     string `mapstructure:"model" yaml:"model"`           // Model name
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // Supports ${ENV_VAR} syntax
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"`     // Optional compatible endpoint
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies run-wide defaults.
type DefaultsCfg struct {
	Provider       string  `mapstructure:"provider" yaml:"provider"`
	MaxWorkers     int     `mapstructure:"max_workers" yaml:"max_workers"`
	Temperature    float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// SegmenterCfg bounds chunk sizes.
type SegmenterCfg struct {
	MaxTokens     int `mapstructure:"max_tokens" yaml:"max_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens" yaml:"overlap_tokens"`
}

// ExtractionCfg selects the template and tunes validation and retry.
type ExtractionCfg struct {
	// Template is a bundled preset name, or a path to a YAML definition
	// when it ends in .yaml or .yml.
	Template            string  `mapstructure:"template" yaml:"template"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold"`
	MaxRetries          int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds   int     `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 150,
				Enabled:   true,
			},
		},
		Defaults: DefaultsCfg{
			Provider:       "openai",
			MaxWorkers:     4,
			Temperature:    0.1,
			MaxTokens:      4096,
			TimeoutSeconds: 120,
		},
		Segmenter: SegmenterCfg{
			MaxTokens:     2000,
			OverlapTokens: 200,
		},
		Extraction: ExtractionCfg{
			Template:            "default",
			SimilarityThreshold: 0.8,
			MaxRetries:          3,
			RetryDelaySeconds:   1,
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
