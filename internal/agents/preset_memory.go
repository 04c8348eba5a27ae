package agents

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PresetStore is an in-memory Presets.
type PresetStore struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewPresetStore() *PresetStore {
	return &PresetStore{presets: make(map[string]Preset)}
}

func (s *PresetStore) List(ctx context.Context) ([]Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Preset, 0, len(s.presets))
	for _, p := range s.presets {
		out = append(out, clonePreset(p))
	}
	slices.SortFunc(out, func(a, b Preset) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *PresetStore) Find(ctx context.Context, name string) (*Preset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.presets[name]
	if !ok {
		return nil, ErrPresetNotFound
	}
	out := clonePreset(p)
	return &out, nil
}

func (s *PresetStore) Save(ctx context.Context, cmd PresetCommand) (*Preset, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p, ok := s.presets[cmd.Name]
	if !ok {
		p = Preset{ID: uuid.New(), Name: cmd.Name, CreatedAt: now}
	}
	p.Description = cmd.Description
	p.AgentIDs = NewSelection(cmd.AgentIDs...)
	p.UpdatedAt = now
	s.presets[cmd.Name] = p

	out := clonePreset(p)
	return &out, nil
}

func (s *PresetStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.presets[name]; !ok {
		return ErrPresetNotFound
	}
	delete(s.presets, name)
	return nil
}

func clonePreset(p Preset) Preset {
	p.AgentIDs = slices.Clone(p.AgentIDs)
	return p
}
