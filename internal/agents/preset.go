package agents

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Preset is a named, fixed agent sequence.
type Preset struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	AgentIDs    []uuid.UUID `json:"agent_ids"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Apply returns the selection the preset stands for. It replaces, never
// merges with, whatever was selected before.
func (p Preset) Apply() Selection {
	return NewSelection(p.AgentIDs...)
}

// PresetCommand creates or replaces a preset by name.
type PresetCommand struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	AgentIDs    []uuid.UUID `json:"agent_ids"`
}

func (c PresetCommand) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrInvalidPreset
	}
	return nil
}

// Presets stores named selections.
type Presets interface {
	List(ctx context.Context) ([]Preset, error)
	Find(ctx context.Context, name string) (*Preset, error)

	// Save creates the preset or replaces the one with the same name.
	Save(ctx context.Context, cmd PresetCommand) (*Preset, error)

	Delete(ctx context.Context, name string) error
}
