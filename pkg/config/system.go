package config

// SystemConfig groups process-wide infrastructure settings that don't fit
// any single component config.
type SystemConfig struct {
	// HTTPAddr is the listen address for pkg/httpapi's gin router
	// (trigger endpoint, read-model GETs, /healthz, /readyz, /metrics).
	HTTPAddr string `yaml:"http_addr"`

	// DashboardURL is linked from operator-facing alert messages
	// (pkg/alerting): dead-letter alerts link to its outbox event page and
	// breaker-trip alerts to its health page.
	DashboardURL string `yaml:"dashboard_url"`

	// TerminologyRouteTable is the path to the YAML file mapping entity
	// types to ordered provider lists (spec.md §4.10), hot-reloaded via
	// pkg/config's fsnotify watcher.
	TerminologyRouteTable string `yaml:"terminology_route_table,omitempty"`
}

// DefaultSystemConfig returns local-dev defaults.
func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		HTTPAddr:     ":8080",
		DashboardURL: "http://localhost:5173",
	}
}
