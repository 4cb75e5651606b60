package config

// AlertingConfig resolves pkg/alerting.Service's Slack notification settings
// (adapted from the teacher's system.slack YAML block).
type AlertingConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TokenEnv     string `yaml:"token_env,omitempty"`
	Channel      string `yaml:"channel,omitempty"`
	DashboardURL string `yaml:"-"`                   // populated from SystemConfig.DashboardURL at load time
}

// DefaultAlertingConfig returns alerting disabled, matching the teacher's
// opt-in Slack posture.
func DefaultAlertingConfig() *AlertingConfig {
	return &AlertingConfig{
		Enabled:  false,
		TokenEnv: "SLACK_BOT_TOKEN",
	}
}
