package config

import (
	"fmt"
	"os"

	playground "github.com/go-playground/validator/v10"
)

// structTagValidator runs the `validate:"..."` struct tags declared on the
// config types (required fields, min bounds) — the mechanical half of
// validation. Validator layers cross-field and cross-section rules on top,
// the same two-tier split the teacher's pkg/config/validator.go uses.
var structTagValidator = playground.New()

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast, stops at the
// first error). Order: independent leaf sections first, then sections that
// cross-reference them.
func (v *Validator) ValidateAll() error {
	if err := v.validateStructTags(); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := v.validatePipeline(); err != nil {
		return fmt.Errorf("pipeline validation failed: %w", err)
	}
	if err := v.validateOutbox(); err != nil {
		return fmt.Errorf("outbox validation failed: %w", err)
	}
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	if err := v.validateResilience(); err != nil {
		return fmt.Errorf("resilience validation failed: %w", err)
	}
	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("LLM provider validation failed: %w", err)
	}
	if err := v.validateTerminologyProviders(); err != nil {
		return fmt.Errorf("terminology provider validation failed: %w", err)
	}
	if err := v.validateBlobStore(); err != nil {
		return fmt.Errorf("blobstore validation failed: %w", err)
	}
	if err := v.validateAlerting(); err != nil {
		return fmt.Errorf("alerting validation failed: %w", err)
	}
	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	return nil
}

// validateStructTags runs go-playground/validator's struct-tag checks over
// every section that declares `validate:"..."` tags. Tags document intent;
// the hand-written checks below enforce the cross-field rules tags can't
// express (matching SPEC_FULL.md §10's "tags document intent, Validator
// enforces cross-field rules").
func (v *Validator) validateStructTags() error {
	sections := []any{
		v.cfg.Pipeline,
		v.cfg.Outbox,
		v.cfg.Resilience,
	}
	for _, s := range sections {
		if err := structTagValidator.Struct(s); err != nil {
			return err
		}
	}
	for name, p := range v.cfg.LLMProviderRegistry.GetAll() {
		if err := structTagValidator.Struct(p); err != nil {
			return NewValidationError("llm_provider", name, "", err)
		}
	}
	for name, p := range v.cfg.TerminologyProviderRegistry.GetAll() {
		if err := structTagValidator.Struct(p); err != nil {
			return NewValidationError("terminology_provider", name, "", err)
		}
	}
	return nil
}

func (v *Validator) validatePipeline() error {
	p := v.cfg.Pipeline
	if p == nil {
		return fmt.Errorf("pipeline configuration is nil")
	}
	if p.MaxCriteria < 0 {
		return fmt.Errorf("max_criteria must be non-negative, got %d", p.MaxCriteria)
	}
	if p.MaxEntities < 0 {
		return fmt.Errorf("max_entities must be non-negative, got %d", p.MaxEntities)
	}
	return nil
}

func (v *Validator) validateOutbox() error {
	o := v.cfg.Outbox
	if o == nil {
		return fmt.Errorf("outbox configuration is nil")
	}
	if o.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", o.PollInterval)
	}
	if o.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", o.PollIntervalJitter)
	}
	if o.PollIntervalJitter >= o.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", o.PollIntervalJitter, o.PollInterval)
	}
	if o.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %v", o.InitialBackoff)
	}
	if o.MaxBackoff < o.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff, got max=%v initial=%v", o.MaxBackoff, o.InitialBackoff)
	}
	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return fmt.Errorf("retention configuration is nil")
	}
	if r.DeadLetterTTL <= 0 {
		return fmt.Errorf("dead_letter_ttl must be positive, got %v", r.DeadLetterTTL)
	}
	if r.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", r.SweepInterval)
	}
	return nil
}

func (v *Validator) validateResilience() error {
	r := v.cfg.Resilience
	if r == nil {
		return fmt.Errorf("resilience configuration is nil")
	}
	if r.CircuitWindow <= 0 {
		return fmt.Errorf("circuit_window must be positive, got %v", r.CircuitWindow)
	}
	if r.CircuitOpenTimeout <= 0 {
		return fmt.Errorf("circuit_open_timeout must be positive, got %v", r.CircuitOpenTimeout)
	}
	if r.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff_seconds must be positive, got %v", r.InitialBackoff)
	}
	if r.MaxBackoff < r.InitialBackoff {
		return fmt.Errorf("max_backoff_seconds must be >= initial_backoff_seconds")
	}
	if r.Multiplier <= 1 {
		return fmt.Errorf("multiplier must be greater than 1, got %v", r.Multiplier)
	}
	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("llm_provider", name, "type", fmt.Errorf("invalid provider type: %s", provider.Type))
		}
		if provider.APIKeyEnv != "" {
			if value := os.Getenv(provider.APIKeyEnv); value == "" {
				return NewValidationError("llm_provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv))
			}
		}
		if provider.Type == LLMProviderTypeVertexAI {
			if provider.ProjectEnv != "" && os.Getenv(provider.ProjectEnv) == "" {
				return NewValidationError("llm_provider", name, "project_env", fmt.Errorf("environment variable %s is not set", provider.ProjectEnv))
			}
			if provider.LocationEnv != "" && os.Getenv(provider.LocationEnv) == "" {
				return NewValidationError("llm_provider", name, "location_env", fmt.Errorf("environment variable %s is not set", provider.LocationEnv))
			}
		}
	}
	if v.cfg.Defaults != nil && v.cfg.Defaults.LLMProvider != "" && !v.cfg.LLMProviderRegistry.Has(v.cfg.Defaults.LLMProvider) {
		return NewValidationError("defaults", "", "llm_provider", fmt.Errorf("provider '%s' not found", v.cfg.Defaults.LLMProvider))
	}
	return nil
}

func (v *Validator) validateTerminologyProviders() error {
	for name, provider := range v.cfg.TerminologyProviderRegistry.GetAll() {
		if provider.BaseURL == "" {
			return NewValidationError("terminology_provider", name, "base_url", ErrMissingRequiredField)
		}
		if provider.APIKeyEnv != "" {
			if value := os.Getenv(provider.APIKeyEnv); value == "" {
				return NewValidationError("terminology_provider", name, "api_key_env", fmt.Errorf("environment variable %s is not set", provider.APIKeyEnv))
			}
		}
	}

	// Cross-reference: every provider name in the route table must resolve
	// to a declared provider. Unlike pkg/terminology.Router (which silently
	// drops unknown names at runtime so operators can stage undeployed
	// providers), config load time is where a typo should be caught loudly.
	if v.cfg.RouteTable != nil {
		for entityType, names := range v.cfg.RouteTable {
			for _, name := range names {
				if !v.cfg.TerminologyProviderRegistry.Has(name) {
					return NewValidationError("route_table", entityType, "providers",
						fmt.Errorf("%w: provider '%s'", ErrInvalidReference, name))
				}
			}
		}
	}

	return nil
}

func (v *Validator) validateBlobStore() error {
	b := v.cfg.BlobStore
	if b == nil {
		return fmt.Errorf("blobstore configuration is nil")
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("blobstore timeout must be positive, got %v", b.Timeout)
	}
	return nil
}

func (v *Validator) validateAlerting() error {
	a := v.cfg.Alerting
	if a == nil || !a.Enabled {
		return nil
	}
	if a.Channel == "" {
		return NewValidationError("alerting", "", "channel", ErrMissingRequiredField)
	}
	if a.TokenEnv == "" {
		return NewValidationError("alerting", "", "token_env", ErrMissingRequiredField)
	}
	if os.Getenv(a.TokenEnv) == "" {
		return NewValidationError("alerting", "", "token_env", fmt.Errorf("environment variable %s is not set", a.TokenEnv))
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return nil
	}
	if d.ProviderCache.TTLSeconds < 0 {
		return NewValidationError("defaults", "", "provider_cache.ttl_seconds", fmt.Errorf("must be non-negative"))
	}
	if d.ProviderCache.Capacity < 0 {
		return NewValidationError("defaults", "", "provider_cache.capacity", fmt.Errorf("must be non-negative"))
	}
	return nil
}
