package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// eligibilityYAMLConfig represents the complete eligibility.yaml file structure.
type eligibilityYAMLConfig struct {
	System     *SystemConfig     `yaml:"system"`
	Defaults   *Defaults         `yaml:"defaults"`
	Pipeline   *PipelineConfig   `yaml:"pipeline"`
	Outbox     *OutboxConfig     `yaml:"outbox"`
	Retention  *RetentionConfig  `yaml:"retention"`
	Resilience *ResilienceConfig `yaml:"resilience"`
	BlobStore  *BlobStoreConfig  `yaml:"blobstore"`
	Alerting   *AlertingConfig   `yaml:"alerting"`
}

// llmProvidersYAMLConfig represents the complete llm-providers.yaml file structure.
type llmProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// terminologyProvidersYAMLConfig represents the complete
// terminology-providers.yaml file structure.
type terminologyProvidersYAMLConfig struct {
	TerminologyProviders map[string]TerminologyProviderConfig `yaml:"terminology_providers"`
}

// defaultRouteTable is the fallback entity_type → provider list, matching
// spec.md §4.10 exactly, used when System.TerminologyRouteTable is unset.
func defaultRouteTable() map[string][]string {
	return map[string][]string{
		"medication":  {"rxnorm", "umls"},
		"condition":   {"snomed", "icd10", "umls"},
		"lab_value":   {"loinc", "umls"},
		"biomarker":   {"loinc", "snomed", "umls"},
		"procedure":   {"snomed", "cpt", "umls"},
		"phenotype":   {"hpo", "umls"},
		"demographic": {},
	}
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge defaults with user-provided overrides (dario.cat/mergo)
//  5. Load the LLM/terminology provider registries
//  6. Resolve the terminology route table (file or built-in default)
//  7. Thread DashboardURL into Alerting (cross-section default)
//  8. Validate all configuration
//  9. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized successfully",
		"llm_providers", stats.LLMProviders,
		"terminology_providers", stats.TerminologyProviders)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadEligibilityYAML()
	if err != nil {
		return nil, NewLoadError("eligibility.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	termProviders, err := loader.loadTerminologyProvidersYAML()
	if err != nil {
		return nil, NewLoadError("terminology-providers.yaml", err)
	}

	// 4. Merge package defaults with user overrides. Start from the default
	// struct, then merge the user-provided struct on top so unset (zero)
	// user fields don't clobber defaults — same pattern the teacher applies
	// to queue config.
	pipelineCfg := DefaultPipelineConfig()
	if yamlCfg.Pipeline != nil {
		if err := mergo.Merge(pipelineCfg, yamlCfg.Pipeline, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge pipeline config: %w", err)
		}
	}

	outboxCfg := DefaultOutboxConfig()
	if yamlCfg.Outbox != nil {
		if err := mergo.Merge(outboxCfg, yamlCfg.Outbox, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge outbox config: %w", err)
		}
	}

	retentionCfg := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retentionCfg, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge retention config: %w", err)
		}
	}

	resilienceCfg := DefaultResilienceConfig()
	if yamlCfg.Resilience != nil {
		if err := mergo.Merge(resilienceCfg, yamlCfg.Resilience, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge resilience config: %w", err)
		}
	}

	blobStoreCfg := DefaultBlobStoreConfig()
	if yamlCfg.BlobStore != nil {
		if err := mergo.Merge(blobStoreCfg, yamlCfg.BlobStore, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge blobstore config: %w", err)
		}
	}

	alertingCfg := DefaultAlertingConfig()
	if yamlCfg.Alerting != nil {
		if err := mergo.Merge(alertingCfg, yamlCfg.Alerting, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge alerting config: %w", err)
		}
	}

	systemCfg := DefaultSystemConfig()
	if yamlCfg.System != nil {
		if err := mergo.Merge(systemCfg, yamlCfg.System, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge system config: %w", err)
		}
	}
	// Cross-section default: an alert deep-links to the dashboard even when
	// system.dashboard_url is the only place it was configured.
	alertingCfg.DashboardURL = systemCfg.DashboardURL

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}

	// 5. Build provider registries (no built-ins — operators must declare
	// every LLM/terminology provider explicitly; there's no sensible
	// built-in clinical vocabulary endpoint to ship).
	llmRegistry := NewLLMProviderRegistry(mergeLLMProviders(nil, llmProviders))
	termRegistry := NewTerminologyProviderRegistry(mergeTerminologyProviders(nil, termProviders))

	// 6. Resolve the terminology route table.
	routeTable := defaultRouteTable()
	if systemCfg.TerminologyRouteTable != "" {
		loaded, err := loadRouteTableYAML(systemCfg.TerminologyRouteTable)
		if err != nil {
			return nil, fmt.Errorf("load terminology route table: %w", err)
		}
		routeTable = loaded
	}

	return &Config{
		configDir:                   configDir,
		Defaults:                    defaults,
		Pipeline:                    pipelineCfg,
		Outbox:                      outboxCfg,
		Retention:                   retentionCfg,
		Resilience:                  resilienceCfg,
		BlobStore:                   blobStoreCfg,
		Alerting:                    alertingCfg,
		System:                      systemCfg,
		RouteTable:                  routeTable,
		LLMProviderRegistry:         llmRegistry,
		TerminologyProviderRegistry: termRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Note: ExpandEnv has no error path: every $VAR/${VAR} reference is
	// replaced, an unset variable by the empty string, and the YAML parser
	// sees the expanded result.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadEligibilityYAML() (*eligibilityYAMLConfig, error) {
	var cfg eligibilityYAMLConfig
	if err := l.loadYAML("eligibility.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var cfg llmProvidersYAMLConfig
	cfg.LLMProviders = make(map[string]LLMProviderConfig)
	if err := l.loadYAML("llm-providers.yaml", &cfg); err != nil {
		return nil, err
	}
	return cfg.LLMProviders, nil
}

func (l *configLoader) loadTerminologyProvidersYAML() (map[string]TerminologyProviderConfig, error) {
	var cfg terminologyProvidersYAMLConfig
	cfg.TerminologyProviders = make(map[string]TerminologyProviderConfig)
	if err := l.loadYAML("terminology-providers.yaml", &cfg); err != nil {
		return nil, err
	}
	return cfg.TerminologyProviders, nil
}
