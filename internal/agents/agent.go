// Package agents holds the registry of AI agent responders: their
// configuration, display ordering, user selections, presets, and the
// invoker that executes an agent against a prompt.
package agents

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Agent is a named responder. SystemPrompt is passed through to the model
// unchanged; Config is a go-agents agent configuration.
type Agent struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Enabled      bool            `json:"enabled"`
	Weight       int             `json:"weight"`
	SystemPrompt string          `json:"system_prompt"`
	Config       json.RawMessage `json:"config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no memory with a.
func (a Agent) Clone() Agent {
	if a.Config != nil {
		a.Config = append(json.RawMessage(nil), a.Config...)
	}
	return a
}

// displayLess orders agents by weight, then name, then id.
func displayLess(a, b Agent) bool {
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}

// CreateCommand contains the data required to create a new agent.
// A nil Enabled creates an enabled agent.
type CreateCommand struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Enabled      *bool           `json:"enabled,omitempty"`
	Weight       int             `json:"weight"`
	SystemPrompt string          `json:"system_prompt"`
	Config       json.RawMessage `json:"config,omitempty"`
}

func (c CreateCommand) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// UpdateCommand replaces every mutable field of an agent.
type UpdateCommand struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Enabled      bool            `json:"enabled"`
	Weight       int             `json:"weight"`
	SystemPrompt string          `json:"system_prompt"`
	Config       json.RawMessage `json:"config,omitempty"`
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	return nil
}
