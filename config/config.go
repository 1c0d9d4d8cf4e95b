package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: PostgreSQL and Redis connection configuration
//   - http.go: HTTP server and callback authentication configuration
//   - queue.go: queue names and default job options
//   - cache.go: result cache backend configuration
//   - provider.go: AI provider configuration for the completion worker
//   - services.go: Service mode and worker configuration
type AppConfig struct {
	// IsDev controls development mode behavior.
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// Queue and result cache configuration
	Queue       QueueConfig
	ResultCache ResultCacheConfig

	// Completion record query configuration
	Completions CompletionsConfig

	// HTTP server configuration
	HTTP     HTTPConfig
	Callback CallbackConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Completion worker configuration
	Worker WorkerConfig

	// AI provider configuration
	Provider ProviderConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Queue.Sanitize()
	c.ResultCache.Sanitize()
	c.Completions.Sanitize()
	c.Worker.Sanitize()
	c.Provider.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.isEnabled(ServiceModeHTTP)
}

// IsCompletionWorkerEnabled returns true if the in-process completion worker is enabled.
func (c *AppConfig) IsCompletionWorkerEnabled() bool {
	return c.isEnabled(ServiceModeCompletionWorker)
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	return c.isEnabled(ServiceModeReaper)
}
