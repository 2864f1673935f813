package ratelimit

import (
	"fmt"
	"time"
)

// BackendType selects where counters live.
type BackendType string

const (
	BackendLocal       BackendType = "local"
	BackendDistributed BackendType = "distributed"
)

// Config allows Requests hits per Window for every key.
type Config struct {
	Enabled  bool          `json:"enabled"`
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
	Type     BackendType   `json:"type"`

	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `json:"key_prefix,omitempty"`

	// Cleanup settings for the local backend.
	MaxKeys       int           `json:"max_keys,omitempty"`
	CleanupPeriod time.Duration `json:"cleanup_period,omitempty"`
}

// DefaultConfig returns 60 requests per minute on the local backend.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Requests:      60,
		Window:        time.Minute,
		Type:          BackendLocal,
		KeyPrefix:     "ratelimit:",
		MaxKeys:       10000,
		CleanupPeriod: 5 * time.Minute,
	}
}

// Validate checks the limits and fills unset optional fields.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Requests <= 0 {
		return fmt.Errorf("requests must be positive, got %d", c.Requests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}

	if c.Type == "" {
		c.Type = BackendLocal
	}
	switch c.Type {
	case BackendLocal:
		if c.MaxKeys <= 0 {
			c.MaxKeys = 10000
		}
		if c.CleanupPeriod <= 0 {
			c.CleanupPeriod = 5 * time.Minute
		}
	case BackendDistributed:
		if c.KeyPrefix == "" {
			c.KeyPrefix = "ratelimit:"
		}
	default:
		return fmt.Errorf("unsupported rate limiter backend type: %s", c.Type)
	}
	return nil
}
