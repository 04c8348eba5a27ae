package agents

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/google/uuid"
)

// Registry is an in-memory System. Every read returns copies, so a
// snapshot taken for a run is unaffected by later mutation.
type Registry struct {
	mu         sync.RWMutex
	agents     map[uuid.UUID]Agent
	logger     *slog.Logger
	pagination pagination.Config
}

func NewRegistry(logger *slog.Logger, pagination pagination.Config) *Registry {
	return &Registry{
		agents:     make(map[uuid.UUID]Agent),
		logger:     logger.With("system", "agents", "backend", "memory"),
		pagination: pagination,
	}
}

func (r *Registry) List(ctx context.Context) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if a.Enabled {
			out = append(out, a.Clone())
		}
	}
	sortDisplay(out)
	return out, nil
}

func (r *Registry) Search(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error) {
	page.Normalize(r.pagination)

	r.mu.RLock()
	matched := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		if !filters.Match(a) {
			continue
		}
		if page.Search != nil && !containsFold(a.Name, *page.Search) && !containsFold(a.Description, *page.Search) {
			continue
		}
		matched = append(matched, a.Clone())
	}
	r.mu.RUnlock()

	sortDisplay(matched)

	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	result := pagination.NewPageResult(matched[start:end], total, page.Page, page.PageSize)
	return &result, nil
}

func (r *Registry) Find(ctx context.Context, id uuid.UUID) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := a.Clone()
	return &out, nil
}

func (r *Registry) Snapshot(ctx context.Context, ids []uuid.UUID) ([]Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return orderSnapshot(ids, r.agents)
}

func (r *Registry) Create(ctx context.Context, cmd CreateCommand) (*Agent, error) {
	if err := validateName(cmd.Name); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cmd.Config); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := Agent{
		ID:           uuid.New(),
		Name:         cmd.Name,
		Description:  cmd.Description,
		Enabled:      cmd.enabled(),
		Weight:       cmd.Weight,
		SystemPrompt: cmd.SystemPrompt,
		Config:       cmd.Config,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(a.Name, uuid.Nil) {
		return nil, ErrDuplicate
	}
	r.agents[a.ID] = a.Clone()

	r.logger.Info("agent created", "id", a.ID, "name", a.Name)
	return &a, nil
}

func (r *Registry) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Agent, error) {
	if err := validateName(cmd.Name); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cmd.Config); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.nameTaken(cmd.Name, id) {
		return nil, ErrDuplicate
	}

	a.Name = cmd.Name
	a.Description = cmd.Description
	a.Enabled = cmd.Enabled
	a.Weight = cmd.Weight
	a.SystemPrompt = cmd.SystemPrompt
	a.Config = cmd.Config
	a.UpdatedAt = time.Now().UTC()
	r.agents[id] = a.Clone()

	r.logger.Info("agent updated", "id", a.ID, "name", a.Name)
	return &a, nil
}

func (r *Registry) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.agents[id]; !ok {
		return ErrNotFound
	}
	delete(r.agents, id)

	r.logger.Info("agent deleted", "id", id)
	return nil
}

// Replace swaps the registry contents for agents in one step. Agents
// without an id are assigned one.
func (r *Registry) Replace(agents []Agent) error {
	next := make(map[uuid.UUID]Agent, len(agents))
	names := make(map[string]bool, len(agents))

	for _, a := range agents {
		if err := validateName(a.Name); err != nil {
			return err
		}
		if names[a.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicate, a.Name)
		}
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		names[a.Name] = true
		next[a.ID] = a.Clone()
	}

	r.mu.Lock()
	r.agents = next
	r.mu.Unlock()

	r.logger.Info("registry replaced", "agents", len(next))
	return nil
}

// nameTaken reports whether another agent uses name. Caller holds mu.
func (r *Registry) nameTaken(name string, self uuid.UUID) bool {
	for id, a := range r.agents {
		if id != self && a.Name == name {
			return true
		}
	}
	return false
}

func sortDisplay(agents []Agent) {
	slices.SortFunc(agents, func(a, b Agent) int {
		switch {
		case displayLess(a, b):
			return -1
		case displayLess(b, a):
			return 1
		default:
			return 0
		}
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
