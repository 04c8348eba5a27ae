package messages

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository keyed by conversation.
// Rows are kept in (CreatedAt, ID) order.
type MemoryRepository struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID][]Message
	index map[string]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows:  make(map[uuid.UUID][]Message),
		index: make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) Append(ctx context.Context, msg Message) (*Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[msg.ID]; ok {
		existing, _ := r.find(msg.ID)
		return &existing, nil
	}

	msg.Status = StatusDelivered
	rows := r.rows[msg.ConversationID]
	i := sort.Search(len(rows), func(i int) bool {
		return rowLess(msg, rows[i])
	})
	rows = append(rows, Message{})
	copy(rows[i+1:], rows[i:])
	rows[i] = msg

	r.rows[msg.ConversationID] = rows
	r.index[msg.ID] = msg.ConversationID

	return &msg, nil
}

func (r *MemoryRepository) Update(ctx context.Context, msg Message) (*Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	convID, ok := r.index[msg.ID]
	if !ok {
		return nil, ErrNotFound
	}

	rows := r.rows[convID]
	for i := range rows {
		if rows[i].ID == msg.ID {
			rows[i].Content = msg.Content
			rows[i].Rich = msg.Rich
			rows[i].IsError = msg.IsError
			out := rows[i]
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Delete(ctx context.Context, conversationID uuid.UUID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if convID, ok := r.index[id]; !ok || convID != conversationID {
		return ErrNotFound
	}

	rows := r.rows[conversationID]
	for i := range rows {
		if rows[i].ID == id {
			r.rows[conversationID] = append(rows[:i], rows[i+1:]...)
			break
		}
	}
	delete(r.index, id)
	return nil
}

// DeleteConversation drops every row for a conversation.
func (r *MemoryRepository) DeleteConversation(conversationID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.rows[conversationID] {
		delete(r.index, m.ID)
	}
	delete(r.rows, conversationID)
}

func (r *MemoryRepository) Find(ctx context.Context, id string) (*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.find(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (r *MemoryRepository) Page(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]Message, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.rows[conversationID]
	end := len(rows)
	if before != nil {
		end = sort.Search(len(rows), func(i int) bool {
			return !rows[i].CreatedAt.Before(*before)
		})
	}

	start := max(end-limit, 0)
	page := make([]Message, end-start)
	copy(page, rows[start:end])

	return page, start > 0, nil
}

// Len returns the number of stored rows for a conversation.
func (r *MemoryRepository) Len(conversationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows[conversationID])
}

func (r *MemoryRepository) find(id string) (Message, bool) {
	convID, ok := r.index[id]
	if !ok {
		return Message{}, false
	}
	for _, m := range r.rows[convID] {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

func rowLess(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
