package conversations

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/google/uuid"
)

// Memory is an in-process System used by tests and the memory-only mode.
type Memory struct {
	mu         sync.RWMutex
	items      map[uuid.UUID]Conversation
	pagination pagination.Config
}

func NewMemory(pagination pagination.Config) *Memory {
	return &Memory{
		items:      make(map[uuid.UUID]Conversation),
		pagination: pagination,
	}
}

func (m *Memory) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Conversation], error) {
	page.Normalize(m.pagination)

	m.mu.RLock()
	var all []Conversation
	for _, c := range m.items {
		if !filters.Match(c) {
			continue
		}
		if page.Search != nil && !(Filters{Title: page.Search}).Match(c) {
			continue
		}
		all = append(all, c)
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	total := len(all)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	result := pagination.NewPageResult(all[start:end], total, page.Page, page.PageSize)
	return &result, nil
}

func (m *Memory) Find(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *Memory) Create(ctx context.Context, cmd CreateCommand) (*Conversation, error) {
	title, err := normalizeTitle(cmd.Title)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := Conversation{ID: uuid.New(), Title: title, CreatedAt: now, UpdatedAt: now}

	m.mu.Lock()
	m.items[c.ID] = c
	m.mu.Unlock()
	return &c, nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Conversation, error) {
	title, err := normalizeTitle(cmd.Title)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Title = title
	c.UpdatedAt = time.Now().UTC()
	m.items[id] = c
	return &c, nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}
