package capabilities

// ProviderCapabilities describes every model a provider exposes.
type ProviderCapabilities struct {
	Provider string              `yaml:"provider"`
	Models   []ModelCapabilities `yaml:"models"`
}

// ModelCapabilities describes the limits of a single completion model.
type ModelCapabilities struct {
	Name          string `yaml:"name"`
	ContextWindow int    `yaml:"context_window"`
	MaxOutput     int    `yaml:"max_output"`
	Streaming     bool   `yaml:"streaming"`
}
