package config

// Config is the umbrella configuration object returned by Initialize() and
// threaded through cmd/pipeline-worker to build every collaborator.
type Config struct {
	configDir string

	// System-wide defaults.
	Defaults *Defaults

	Pipeline   *PipelineConfig
	Outbox     *OutboxConfig
	Retention  *RetentionConfig
	Resilience *ResilienceConfig
	BlobStore  *BlobStoreConfig
	Alerting   *AlertingConfig
	System     *SystemConfig

	// RouteTable is the entity_type → ordered provider name list parsed from
	// System.TerminologyRouteTable (or DefaultRouteTable if unset).
	RouteTable map[string][]string

	// Component registries.
	LLMProviderRegistry         *LLMProviderRegistry
	TerminologyProviderRegistry *TerminologyProviderRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration, useful for a
// single structured log line after a successful load.
type ConfigStats struct {
	LLMProviders         int
	TerminologyProviders int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		LLMProviders:         c.LLMProviderRegistry.Len(),
		TerminologyProviders: c.TerminologyProviderRegistry.Len(),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetLLMProvider retrieves an LLM provider configuration by name. Convenience
// wrapper around LLMProviderRegistry.Get().
func (c *Config) GetLLMProvider(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}

// GetTerminologyProvider retrieves a terminology provider configuration by
// name. Convenience wrapper around TerminologyProviderRegistry.Get().
func (c *Config) GetTerminologyProvider(name string) (*TerminologyProviderConfig, error) {
	return c.TerminologyProviderRegistry.Get(name)
}
