package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvChatStepTimeout        = "CHAT_STEP_TIMEOUT"
	EnvChatTypingTTL          = "CHAT_TYPING_TTL"
	EnvChatContextTokenBudget = "CHAT_CONTEXT_TOKEN_BUDGET"
	EnvChatHistoryPageSize    = "CHAT_HISTORY_PAGE_SIZE"
	EnvChatReconnectMin       = "CHAT_RECONNECT_MIN"
	EnvChatReconnectMax       = "CHAT_RECONNECT_MAX"
	EnvChatFileTokenLimit     = "CHAT_FILE_TOKEN_LIMIT"
	EnvChatPersistTimeout     = "CHAT_PERSIST_TIMEOUT"
)

// ChatConfig tunes the conversation engine.
type ChatConfig struct {
	// StepTimeout bounds a single agent invocation.
	StepTimeout string `toml:"step_timeout"`

	// TypingTTL is how long a typing signal stays live without new input.
	TypingTTL string `toml:"typing_ttl"`

	// ContextTokenBudget caps the rendered prior-agent context per
	// invocation. Zero selects the default; a negative value disables it.
	ContextTokenBudget int `toml:"context_token_budget"`

	// HistoryPageSize is the number of messages loaded when a subscription opens.
	HistoryPageSize int `toml:"history_page_size"`

	ReconnectMin string `toml:"reconnect_min"`
	ReconnectMax string `toml:"reconnect_max"`

	// FileTokenLimit caps attached file text included in a turn's prompt.
	// Zero selects the default; a negative value disables it.
	FileTokenLimit int `toml:"file_token_limit"`

	// PersistTimeout bounds writing one emitted message, independent of the
	// run's cancellation.
	PersistTimeout string `toml:"persist_timeout"`
}

func (c *ChatConfig) StepTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StepTimeout)
	return d
}

func (c *ChatConfig) TypingTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TypingTTL)
	return d
}

func (c *ChatConfig) ReconnectMinDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReconnectMin)
	return d
}

func (c *ChatConfig) ReconnectMaxDuration() time.Duration {
	d, _ := time.ParseDuration(c.ReconnectMax)
	return d
}

func (c *ChatConfig) PersistTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PersistTimeout)
	return d
}

func (c *ChatConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *ChatConfig) Merge(overlay *ChatConfig) {
	if overlay.StepTimeout != "" {
		c.StepTimeout = overlay.StepTimeout
	}
	if overlay.TypingTTL != "" {
		c.TypingTTL = overlay.TypingTTL
	}
	if overlay.ContextTokenBudget != 0 {
		c.ContextTokenBudget = overlay.ContextTokenBudget
	}
	if overlay.HistoryPageSize != 0 {
		c.HistoryPageSize = overlay.HistoryPageSize
	}
	if overlay.ReconnectMin != "" {
		c.ReconnectMin = overlay.ReconnectMin
	}
	if overlay.ReconnectMax != "" {
		c.ReconnectMax = overlay.ReconnectMax
	}
	if overlay.FileTokenLimit != 0 {
		c.FileTokenLimit = overlay.FileTokenLimit
	}
	if overlay.PersistTimeout != "" {
		c.PersistTimeout = overlay.PersistTimeout
	}
}

func (c *ChatConfig) loadDefaults() {
	if c.StepTimeout == "" {
		c.StepTimeout = "60s"
	}
	if c.TypingTTL == "" {
		c.TypingTTL = "5s"
	}
	if c.ContextTokenBudget == 0 {
		c.ContextTokenBudget = 6000
	}
	if c.HistoryPageSize == 0 {
		c.HistoryPageSize = 50
	}
	if c.ReconnectMin == "" {
		c.ReconnectMin = "500ms"
	}
	if c.ReconnectMax == "" {
		c.ReconnectMax = "30s"
	}
	if c.FileTokenLimit == 0 {
		c.FileTokenLimit = 4000
	}
	if c.PersistTimeout == "" {
		c.PersistTimeout = "10s"
	}
}

func (c *ChatConfig) loadEnv() {
	if v := os.Getenv(EnvChatStepTimeout); v != "" {
		c.StepTimeout = v
	}
	if v := os.Getenv(EnvChatTypingTTL); v != "" {
		c.TypingTTL = v
	}
	if v := os.Getenv(EnvChatContextTokenBudget); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ContextTokenBudget = n
		}
	}
	if v := os.Getenv(EnvChatHistoryPageSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HistoryPageSize = n
		}
	}
	if v := os.Getenv(EnvChatReconnectMin); v != "" {
		c.ReconnectMin = v
	}
	if v := os.Getenv(EnvChatReconnectMax); v != "" {
		c.ReconnectMax = v
	}
	if v := os.Getenv(EnvChatFileTokenLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FileTokenLimit = n
		}
	}
	if v := os.Getenv(EnvChatPersistTimeout); v != "" {
		c.PersistTimeout = v
	}
}

func (c *ChatConfig) validate() error {
	for name, v := range map[string]string{
		"step_timeout":    c.StepTimeout,
		"typing_ttl":      c.TypingTTL,
		"reconnect_min":   c.ReconnectMin,
		"reconnect_max":   c.ReconnectMax,
		"persist_timeout": c.PersistTimeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.ReconnectMinDuration() > c.ReconnectMaxDuration() {
		return fmt.Errorf("reconnect_min cannot exceed reconnect_max")
	}
	if c.HistoryPageSize < 1 {
		return fmt.Errorf("history_page_size must be positive")
	}
	return nil
}
