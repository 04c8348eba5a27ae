package realtime

import (
	"fmt"
	"os"
	"strconv"
)

// Env maps environment variable names for transport configuration.
type Env struct {
	Kind       string
	RedisURL   string
	Buffer     string
	MaxPayload string
}

// Config selects and tunes the Transport.
type Config struct {
	Kind     Kind   `toml:"kind"`
	RedisURL string `toml:"redis_url"`

	// Buffer is the per-subscription payload queue length.
	Buffer int `toml:"buffer"`

	// MaxPayload caps encoded change events; larger events are sent without
	// their row and receivers fetch it.
	MaxPayload int `toml:"max_payload"`
}

func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Kind != "" {
		c.Kind = overlay.Kind
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.Buffer != 0 {
		c.Buffer = overlay.Buffer
	}
	if overlay.MaxPayload != 0 {
		c.MaxPayload = overlay.MaxPayload
	}
}

func (c *Config) loadDefaults() {
	if c.Kind == "" {
		c.Kind = KindMemory
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
	if c.MaxPayload <= 0 {
		c.MaxPayload = MaxNotifyPayload
	}
}

func (c *Config) loadEnv(env *Env) {
	if v := os.Getenv(env.Kind); env.Kind != "" && v != "" {
		c.Kind = Kind(v)
	}
	if v := os.Getenv(env.RedisURL); env.RedisURL != "" && v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(env.Buffer); env.Buffer != "" && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Buffer = n
		}
	}
	if v := os.Getenv(env.MaxPayload); env.MaxPayload != "" && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPayload = n
		}
	}
}

func (c *Config) validate() error {
	switch c.Kind {
	case KindMemory, KindPostgres:
	case KindRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis_url required for redis transport")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, c.Kind)
	}
	if c.Kind == KindPostgres && c.MaxPayload > MaxNotifyPayload {
		return fmt.Errorf("max_payload cannot exceed %d for postgres transport", MaxNotifyPayload)
	}
	return nil
}
