package messages

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PageLoader fetches persisted history for a conversation. Page returns up
// to limit messages older than before (all when before is nil) in ascending
// order, and reports whether older rows remain.
type PageLoader interface {
	Page(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int) ([]Message, bool, error)
}

// ChangeKind names a mutation observed through Store.Listen.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
	ChangeLoaded  ChangeKind = "loaded"
)

// Change carries the messages affected by one Store mutation.
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Messages []Message  `json:"messages"`
}

type entry struct {
	msg Message
}

func (e *entry) less(o *entry) bool {
	return e.msg.before(&o.msg)
}

// Store is the ordered, deduplicated projection of one conversation.
//
// Entries are ordered by (CreatedAt, ID), the order repositories page in,
// and an id never appears twice. Listeners run after the mutation is
// visible and in the order mutations were applied; they must not mutate
// the Store synchronously.
type Store struct {
	conversationID uuid.UUID
	loader         PageLoader

	mu      sync.RWMutex
	entries []*entry
	index   map[string]*entry

	// notify serializes mutation plus listener delivery.
	notify       sync.Mutex
	listenMu     sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

// NewStore creates an empty Store. loader may be nil when history paging
// is not needed.
func NewStore(conversationID uuid.UUID, loader PageLoader) *Store {
	return &Store{
		conversationID: conversationID,
		loader:         loader,
		index:          make(map[string]*entry),
		listeners:      make(map[int]func(Change)),
	}
}

func (s *Store) ConversationID() uuid.UUID {
	return s.conversationID
}

// AppendLocal inserts a locally authored message. User messages without a
// status start pending. A repeated id leaves the Store unchanged and
// returns false.
func (s *Store) AppendLocal(msg Message) (bool, error) {
	if msg.ConversationID != s.conversationID {
		return false, fmt.Errorf("%w: message belongs to %s", ErrMissingConversation, msg.ConversationID)
	}
	if err := msg.Validate(); err != nil {
		return false, err
	}
	if msg.Status == "" {
		msg.Status = StatusPending
	}

	return s.mutate(func() *Change {
		if _, ok := s.index[msg.ID]; ok {
			return nil
		}
		s.insert(msg)
		return &Change{Kind: ChangeAdded, Messages: []Message{msg}}
	}), nil
}

// Reconcile applies a remote change event. It returns true when the Store
// changed. Partial events and events for other conversations are ignored.
func (s *Store) Reconcile(e Event) bool {
	if e.ConversationID != s.conversationID || e.validate() != nil || e.Partial() {
		return false
	}

	return s.mutate(func() *Change {
		switch e.Kind {
		case EventInsert:
			return s.reconcileInsert(*e.Message)
		case EventUpdate:
			return s.reconcileUpdate(*e.Message)
		case EventDelete:
			return s.remove(e.MessageID)
		}
		return nil
	})
}

func (s *Store) reconcileInsert(remote Message) *Change {
	remote.Status = StatusDelivered

	current, ok := s.index[remote.ID]
	if !ok {
		s.insert(remote)
		return &Change{Kind: ChangeAdded, Messages: []Message{remote}}
	}

	merged := current.msg
	merged.CreatedAt = remote.CreatedAt
	merged.Content = remote.Content
	merged.Rich = remote.Rich
	merged.IsError = remote.IsError
	merged.AgentID = remote.AgentID
	merged.FileID = remote.FileID
	merged.ReplyTo = remote.ReplyTo
	merged.TurnID = remote.TurnID
	merged.Status = StatusDelivered

	s.replace(current, merged)
	return &Change{Kind: ChangeUpdated, Messages: []Message{merged}}
}

func (s *Store) reconcileUpdate(remote Message) *Change {
	current, ok := s.index[remote.ID]
	if !ok {
		return nil
	}

	merged := current.msg
	merged.Content = remote.Content
	merged.Rich = remote.Rich
	merged.IsError = remote.IsError
	if remote.Status.rank() > merged.Status.rank() {
		merged.Status = remote.Status
	}

	s.replace(current, merged)
	return &Change{Kind: ChangeUpdated, Messages: []Message{merged}}
}

// MarkSent records that persistence accepted a pending message.
func (s *Store) MarkSent(id string) bool {
	return s.transition(id, StatusSent, func(cur Status) bool {
		return cur == StatusPending
	})
}

// MarkFailed records that persistence rejected a message. Messages the
// server already confirmed are never marked failed.
func (s *Store) MarkFailed(id string) bool {
	return s.transition(id, StatusFailed, func(cur Status) bool {
		return cur == StatusPending || cur == StatusSent
	})
}

// Requeue returns a failed message to pending for a manual retry.
func (s *Store) Requeue(id string) (Message, bool) {
	var out Message
	ok := s.transition(id, StatusPending, func(cur Status) bool {
		return cur == StatusFailed
	})
	if ok {
		out, _ = s.Get(id)
	}
	return out, ok
}

func (s *Store) transition(id string, to Status, allowed func(Status) bool) bool {
	return s.mutate(func() *Change {
		current, ok := s.index[id]
		if !ok || !allowed(current.msg.Status) {
			return nil
		}
		current.msg.Status = to
		return &Change{Kind: ChangeUpdated, Messages: []Message{current.msg}}
	})
}

// LoadPage fetches messages older than before and merges them. Ids already
// present are skipped. It returns the number of new entries and whether
// older history remains.
func (s *Store) LoadPage(ctx context.Context, before *time.Time, limit int) (int, bool, error) {
	if s.loader == nil {
		return 0, false, nil
	}

	page, hasMore, err := s.loader.Page(ctx, s.conversationID, before, limit)
	if err != nil {
		return 0, false, err
	}

	var added []Message
	s.mutate(func() *Change {
		for _, msg := range page {
			if msg.ConversationID != s.conversationID {
				continue
			}
			if _, ok := s.index[msg.ID]; ok {
				continue
			}
			if msg.Status == "" || msg.Status.rank() < StatusDelivered.rank() {
				msg.Status = StatusDelivered
			}
			s.insert(msg)
			added = append(added, msg)
		}
		if len(added) == 0 {
			return nil
		}
		return &Change{Kind: ChangeLoaded, Messages: added}
	})

	return len(added), hasMore, nil
}

// Messages returns an ordered copy of the conversation.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return e.msg, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Oldest returns the timestamp of the earliest loaded message.
func (s *Store) Oldest() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return time.Time{}, false
	}
	return s.entries[0].msg.CreatedAt, true
}

// Listen registers fn for change notifications and returns a function that
// removes it.
func (s *Store) Listen(fn func(Change)) func() {
	s.listenMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenMu.Lock()
			delete(s.listeners, id)
			s.listenMu.Unlock()
		})
	}
}

func (s *Store) mutate(apply func() *Change) bool {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	change := apply()
	s.mu.Unlock()

	if change == nil {
		return false
	}

	s.listenMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenMu.Unlock()

	for _, fn := range fns {
		fn(*change)
	}
	return true
}

// insert places msg at its ordered position. Caller holds mu.
func (s *Store) insert(msg Message) {
	e := &entry{msg: msg}
	s.place(e)
	s.index[msg.ID] = e
}

func (s *Store) place(e *entry) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return e.less(s.entries[i])
	})
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
}

// replace swaps the message held by e, repositioning when its timestamp
// moved. Caller holds mu.
func (s *Store) replace(e *entry, msg Message) {
	moved := !e.msg.CreatedAt.Equal(msg.CreatedAt)
	if moved {
		s.detach(e)
	}
	e.msg = msg
	if moved {
		s.place(e)
	}
}

func (s *Store) remove(id string) *Change {
	e, ok := s.index[id]
	if !ok {
		return nil
	}
	s.detach(e)
	delete(s.index, id)
	return &Change{Kind: ChangeRemoved, Messages: []Message{e.msg}}
}

func (s *Store) detach(e *entry) {
	for i, cur := range s.entries {
		if cur == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}
