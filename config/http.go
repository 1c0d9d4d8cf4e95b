package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":3000"`

	// MaxConns caps concurrently accepted connections. Zero disables the limit.
	MaxConns int `env:"HTTP_MAX_CONNS" envDefault:"1024"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT"        envDefault:"15s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT"       envDefault:"30s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT"        envDefault:"60s"`

	// MaxBodyBytes bounds request bodies accepted by the JSON decoder.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxConns < 0 {
		h.MaxConns = 0
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 5 * time.Second
	}
	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}
}

// CallbackConfig controls authentication of worker callbacks.
type CallbackConfig struct {
	// SigningSecret is the HS256 key workers sign callback tokens with.
	// Empty leaves the callback endpoint unauthenticated.
	SigningSecret string `env:"CALLBACK_SIGNING_SECRET"`

	// Leeway tolerates clock skew when validating token expiry.
	Leeway time.Duration `env:"CALLBACK_TOKEN_LEEWAY" envDefault:"30s"`
}

// Enabled reports whether callbacks must carry a signed token.
func (c CallbackConfig) Enabled() bool {
	return strings.TrimSpace(c.SigningSecret) != ""
}
