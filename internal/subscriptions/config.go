package subscriptions

import (
	"time"

	"github.com/JaimeStill/agent-chat/internal/config"
)

// Config tunes subscription behavior.
type Config struct {
	// HistoryPageSize is the newest-page size loaded on open and after
	// every reconnect.
	HistoryPageSize int
	TypingTTL       time.Duration
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
}

// ConfigFrom derives a Config from the chat configuration section.
func ConfigFrom(c *config.ChatConfig) Config {
	return Config{
		HistoryPageSize: c.HistoryPageSize,
		TypingTTL:       c.TypingTTLDuration(),
		ReconnectMin:    c.ReconnectMinDuration(),
		ReconnectMax:    c.ReconnectMaxDuration(),
	}
}

func (c Config) withDefaults() Config {
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 50
	}
	if c.TypingTTL <= 0 {
		c.TypingTTL = 5 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 500 * time.Millisecond
	}
	if c.ReconnectMax < c.ReconnectMin {
		c.ReconnectMax = c.ReconnectMin
	}
	return c
}

// backoff doubles from min up to max.
type backoff struct {
	min, max, next time.Duration
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{min: min, max: max, next: min}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

func (b *backoff) Reset() {
	b.next = b.min
}
