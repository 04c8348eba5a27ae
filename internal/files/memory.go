package files

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JaimeStill/agent-chat/pkg/storage"
	"github.com/google/uuid"
)

// Memory keeps file metadata in process and blobs in storage.
type Memory struct {
	storage storage.System
	logger  *slog.Logger

	mu    sync.RWMutex
	files map[uuid.UUID]File
}

func NewMemory(store storage.System, logger *slog.Logger) *Memory {
	return &Memory{
		storage: store,
		logger:  logger.With("system", "files"),
		files:   make(map[uuid.UUID]File),
	}
}

func (m *Memory) Find(ctx context.Context, id uuid.UUID) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (m *Memory) Create(ctx context.Context, cmd CreateCommand) (*File, error) {
	f, err := prepare(cmd, m.logger)
	if err != nil {
		return nil, err
	}
	if err := m.storage.Store(ctx, f.StorageKey, cmd.Data); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	m.mu.Lock()
	m.files[f.ID] = f
	m.mu.Unlock()
	return &f, nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	f, ok := m.files[id]
	delete(m.files, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.storage.Delete(ctx, f.StorageKey)
}

func (m *Memory) Text(ctx context.Context, id uuid.UUID) (string, error) {
	f, err := m.Find(ctx, id)
	if err != nil {
		return "", err
	}
	if !IsText(f.ContentType) {
		return "", nil
	}

	data, err := m.storage.Retrieve(ctx, f.StorageKey)
	if err != nil {
		return "", fmt.Errorf("retrieve file: %w", err)
	}
	return ExtractText(f.ContentType, data)
}
