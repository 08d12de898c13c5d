package capabilities

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry holds model capabilities loaded from the embedded YAML
// files. It is used at startup to reject configurations naming models
// the relay does not know, and by the provider to clamp max_tokens.
type Registry struct {
	models map[string]*ModelCapabilities
	mu     sync.RWMutex
}

// NewRegistry creates a registry and loads the embedded capability files.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		models: make(map[string]*ModelCapabilities),
	}

	if err := r.loadProviderFile("openai"); err != nil {
		return nil, fmt.Errorf("failed to load openai capabilities: %w", err)
	}

	return r, nil
}

func (r *Registry) loadProviderFile(provider string) error {
	filename := fmt.Sprintf("config/%s.yaml", provider)
	data, err := configFiles.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	var providerCaps ProviderCapabilities
	if err := yaml.Unmarshal(data, &providerCaps); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filename, err)
	}

	r.mu.Lock()
	for i := range providerCaps.Models {
		m := &providerCaps.Models[i]
		r.models[m.Name] = m
	}
	r.mu.Unlock()

	return nil
}

// Lookup returns capabilities for a model, or an error for unknown models.
func (r *Registry) Lookup(model string) (*ModelCapabilities, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps, ok := r.models[model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", model)
	}
	return caps, nil
}

// ClampMaxTokens caps a requested completion budget to what the model
// supports. Unknown models pass through unchanged.
func (r *Registry) ClampMaxTokens(model string, requested int) int {
	caps, err := r.Lookup(model)
	if err != nil {
		return requested
	}
	if requested <= 0 || requested > caps.MaxOutput {
		return caps.MaxOutput
	}
	return requested
}
