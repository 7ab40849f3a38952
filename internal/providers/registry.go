package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds completion clients by name with thread-safe access.
// Client types are fixed at compile time; configuration selects among them
// by value, never by reflection.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]CompletionClient
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clients: make(map[string]CompletionClient),
		logger:  logger,
	}
}

// Register adds or replaces a client by name.
func (r *Registry) Register(name string, client CompletionClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.logger.Info("registered completion client", "name", name, "type", client.Name())
}

// Get returns a client by name.
func (r *Registry) Get(name string) (CompletionClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("completion client not found: %s", name)
	}
	return client, nil
}

// List returns all registered client names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// ClientConfig describes one provider entry from configuration, with the
// API key already resolved.
type ClientConfig struct {
	Type      string // "openai"
	Model     string
	APIKey    string
	BaseURL   string
	RateLimit int // Requests per minute
	Enabled   bool
}

// NewRegistryFromConfig builds a registry from configuration. Only enabled
// entries with an API key are registered; unknown types are an error so a
// typo in config fails at startup, not at first use.
func NewRegistryFromConfig(cfgs map[string]ClientConfig, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for name, cfg := range cfgs {
		if !cfg.Enabled || cfg.APIKey == "" {
			continue
		}
		switch cfg.Type {
		case "openai":
			r.Register(name, NewOpenAIClient(OpenAIConfig{
				APIKey:    cfg.APIKey,
				Model:     cfg.Model,
				BaseURL:   cfg.BaseURL,
				RateLimit: cfg.RateLimit,
			}))
		case "mock":
			r.Register(name, NewMockClient())
		default:
			return nil, fmt.Errorf("unknown completion client type %q", cfg.Type)
		}
	}
	return r, nil
}
