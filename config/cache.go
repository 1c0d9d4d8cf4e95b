package config

import (
	"strings"
	"time"
)

// ResultCacheBackend names a result cache implementation.
type ResultCacheBackend string

const (
	// ResultCacheMemory keeps callback results in a bounded in-process LRU.
	ResultCacheMemory ResultCacheBackend = "memory"
	// ResultCacheRedis keeps callback results in Redis so they survive restarts and are shared across replicas.
	ResultCacheRedis ResultCacheBackend = "redis"
)

// ResultCacheConfig contains result cache configuration.
type ResultCacheConfig struct {
	Backend ResultCacheBackend `env:"RESULT_CACHE_BACKEND" envDefault:"memory"`

	// TTL bounds how long a callback result is served. Zero keeps entries until evicted.
	TTL time.Duration `env:"RESULT_CACHE_TTL" envDefault:"24h"`

	// Capacity bounds the number of entries held by the memory backend.
	Capacity int `env:"RESULT_CACHE_CAPACITY" envDefault:"10000"`

	// KeyPrefix namespaces result keys in Redis.
	KeyPrefix string `env:"RESULT_CACHE_KEY_PREFIX" envDefault:"jobrelay:result:"`
}

// Sanitize applies guardrails to result cache configuration values.
func (c *ResultCacheConfig) Sanitize() {
	c.Backend = ResultCacheBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend != ResultCacheRedis {
		c.Backend = ResultCacheMemory
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	if c.Capacity < 1 {
		c.Capacity = 10000
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "jobrelay:result:"
	}
}
