package config

import "strings"

const defaultObservabilityName = "jobrelay"

// ObservabilityConfig groups configuration that controls metrics and logging.
type ObservabilityConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls the Prometheus exposition endpoint.
type ObservabilityMetricsConfig struct {
	Enabled bool `env:"OBSERVABILITY_METRICS_ENABLED" envDefault:"true"`

	// Path is where the HTTP server exposes metrics.
	Path string `env:"OBSERVABILITY_METRICS_PATH" envDefault:"/metrics"`

	// Namespace prefixes every metric name.
	Namespace string `env:"OBSERVABILITY_METRICS_NAMESPACE" envDefault:"jobrelay"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.Path = strings.TrimSpace(c.Path)
	if c.Path == "" || !strings.HasPrefix(c.Path, "/") {
		c.Path = "/metrics"
	}
	c.Namespace = strings.TrimSpace(c.Namespace)
	if c.Namespace == "" {
		c.Namespace = defaultObservabilityName
	}
}
