package messages_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/google/uuid"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func userMessage(conv uuid.UUID, id string, at time.Duration) messages.Message {
	return messages.Message{
		ID:             id,
		ConversationID: conv,
		Author:         messages.AuthorUser,
		Content:        "msg " + id,
		CreatedAt:      epoch.Add(at),
	}
}

func agentMessage(conv uuid.UUID, id string, at time.Duration) messages.Message {
	agent := uuid.New()
	return messages.Message{
		ID:             id,
		ConversationID: conv,
		Author:         messages.AuthorAgent,
		AgentID:        &agent,
		Content:        "reply " + id,
		CreatedAt:      epoch.Add(at),
	}
}

func ids(msgs []messages.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func assertIDs(t *testing.T, got []messages.Message, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

func insert(m messages.Message) messages.Event {
	return messages.Event{Kind: messages.EventInsert, ConversationID: m.ConversationID, MessageID: m.ID, Message: &m}
}

func TestStore_AppendLocalStartsPending(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	added, err := s.AppendLocal(userMessage(conv, "a", 0))
	if err != nil {
		t.Fatalf("AppendLocal() error = %v", err)
	}
	if !added {
		t.Fatal("AppendLocal() added = false")
	}

	got, _ := s.Get("a")
	if got.Status != messages.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func TestStore_AppendLocalRejects(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	if _, err := s.AppendLocal(userMessage(uuid.New(), "a", 0)); !errors.Is(err, messages.ErrMissingConversation) {
		t.Errorf("foreign conversation error = %v", err)
	}

	bad := userMessage(conv, "b", 0)
	bad.Author = "system"
	if _, err := s.AppendLocal(bad); !errors.Is(err, messages.ErrInvalidAuthor) {
		t.Errorf("invalid author error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_OrderedByTimestamp(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	s.AppendLocal(userMessage(conv, "c", 3*time.Second))
	s.AppendLocal(userMessage(conv, "a", time.Second))
	s.Reconcile(insert(agentMessage(conv, "b", 2*time.Second)))

	assertIDs(t, s.Messages(), "a", "b", "c")
}

func TestStore_EqualTimestampsOrderedByID(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	s.AppendLocal(userMessage(conv, "z", 0))
	s.Reconcile(insert(agentMessage(conv, "x", 0)))
	s.AppendLocal(userMessage(conv, "y", 0))

	assertIDs(t, s.Messages(), "x", "y", "z")
}

func TestStore_LocalThenEchoIsSingleEntry(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	local := userMessage(conv, "a", 0)
	s.AppendLocal(local)
	s.MarkSent("a")

	echo := local
	echo.CreatedAt = local.CreatedAt.Add(5 * time.Millisecond)
	if !s.Reconcile(insert(echo)) {
		t.Fatal("Reconcile() = false, want true")
	}

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	got, _ := s.Get("a")
	if got.Status != messages.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
	if !got.CreatedAt.Equal(echo.CreatedAt) {
		t.Errorf("created_at = %v, want server value %v", got.CreatedAt, echo.CreatedAt)
	}
}

func TestStore_EchoRepositions(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	s.AppendLocal(userMessage(conv, "a", 0))
	s.AppendLocal(userMessage(conv, "b", time.Second))

	moved := userMessage(conv, "a", 2*time.Second)
	s.Reconcile(insert(moved))

	assertIDs(t, s.Messages(), "b", "a")
}

func TestStore_DuplicateInsertIsIdempotent(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)
	m := agentMessage(conv, "a", 0)

	s.Reconcile(insert(m))
	s.Reconcile(insert(m))

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_UpdateAndDelete(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)
	m := agentMessage(conv, "a", 0)
	s.Reconcile(insert(m))

	m.Content = "edited"
	s.Reconcile(messages.Event{Kind: messages.EventUpdate, ConversationID: conv, MessageID: "a", Message: &m})
	if got, _ := s.Get("a"); got.Content != "edited" {
		t.Errorf("content = %q, want edited", got.Content)
	}

	missing := agentMessage(conv, "ghost", 0)
	if s.Reconcile(messages.Event{Kind: messages.EventUpdate, ConversationID: conv, MessageID: "ghost", Message: &missing}) {
		t.Error("update for unknown id changed the store")
	}

	s.Reconcile(messages.Event{Kind: messages.EventDelete, ConversationID: conv, MessageID: "a"})
	if s.Len() != 0 {
		t.Errorf("Len() = %d after delete, want 0", s.Len())
	}
	if s.Reconcile(messages.Event{Kind: messages.EventDelete, ConversationID: conv, MessageID: "a"}) {
		t.Error("second delete changed the store")
	}
}

func TestStore_IgnoresPartialAndForeignEvents(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	if s.Reconcile(messages.Event{Kind: messages.EventInsert, ConversationID: conv, MessageID: "a"}) {
		t.Error("partial insert changed the store")
	}

	other := agentMessage(uuid.New(), "b", 0)
	if s.Reconcile(insert(other)) {
		t.Error("foreign event changed the store")
	}
}

func TestStore_StatusTransitions(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)
	s.AppendLocal(userMessage(conv, "a", 0))

	if !s.MarkFailed("a") {
		t.Fatal("MarkFailed() = false")
	}
	if s.MarkSent("a") {
		t.Error("MarkSent() on failed message = true")
	}

	m, ok := s.Requeue("a")
	if !ok || m.Status != messages.StatusPending {
		t.Fatalf("Requeue() = %v, %v", m.Status, ok)
	}

	s.Reconcile(insert(m))
	if s.MarkFailed("a") {
		t.Error("MarkFailed() on delivered message = true")
	}
	if _, ok := s.Requeue("a"); ok {
		t.Error("Requeue() on delivered message = true")
	}
}

func TestStore_UpdateNeverRegressesStatus(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)
	m := userMessage(conv, "a", 0)
	s.Reconcile(insert(m))

	m.Status = messages.StatusPending
	s.Reconcile(messages.Event{Kind: messages.EventUpdate, ConversationID: conv, MessageID: "a", Message: &m})

	if got, _ := s.Get("a"); got.Status != messages.StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestStore_LoadPage(t *testing.T) {
	conv := uuid.New()
	repo := messages.NewMemoryRepository()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if _, err := repo.Append(ctx, userMessage(conv, id, time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}

	s := messages.NewStore(conv, repo)

	n, more, err := s.LoadPage(ctx, nil, 2)
	if err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if n != 2 || !more {
		t.Errorf("LoadPage() = %d, %v; want 2, true", n, more)
	}
	assertIDs(t, s.Messages(), "d", "e")

	oldest, _ := s.Oldest()
	n, more, _ = s.LoadPage(ctx, &oldest, 10)
	if n != 3 || more {
		t.Errorf("LoadPage(before) = %d, %v; want 3, false", n, more)
	}
	assertIDs(t, s.Messages(), "a", "b", "c", "d", "e")
}

func TestStore_LoadPageTwiceAddsNothing(t *testing.T) {
	conv := uuid.New()
	repo := messages.NewMemoryRepository()
	ctx := context.Background()
	repo.Append(ctx, userMessage(conv, "a", 0))
	repo.Append(ctx, userMessage(conv, "b", time.Second))

	s := messages.NewStore(conv, repo)
	s.LoadPage(ctx, nil, 10)

	n, _, err := s.LoadPage(ctx, nil, 10)
	if err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if n != 0 || s.Len() != 2 {
		t.Errorf("second LoadPage added %d, Len() = %d", n, s.Len())
	}
}

type failingLoader struct{}

func (failingLoader) Page(context.Context, uuid.UUID, *time.Time, int) ([]messages.Message, bool, error) {
	return nil, false, errors.New("offline")
}

func TestStore_LoadPageErrorLeavesStore(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, failingLoader{})
	s.AppendLocal(userMessage(conv, "a", 0))

	if _, _, err := s.LoadPage(context.Background(), nil, 10); err == nil {
		t.Fatal("LoadPage() error = nil")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_ListenOrderAndRemove(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	var (
		mu    sync.Mutex
		kinds []messages.ChangeKind
	)
	stop := s.Listen(func(c messages.Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})

	m := userMessage(conv, "a", 0)
	s.AppendLocal(m)
	s.MarkSent("a")
	s.Reconcile(messages.Event{Kind: messages.EventDelete, ConversationID: conv, MessageID: "a"})
	stop()
	s.AppendLocal(userMessage(conv, "b", 0))

	want := []messages.ChangeKind{messages.ChangeAdded, messages.ChangeUpdated, messages.ChangeRemoved}
	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != len(want) {
		t.Fatalf("changes = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("change %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestStore_ConcurrentReconcileNoDuplicates(t *testing.T) {
	conv := uuid.New()
	s := messages.NewStore(conv, nil)

	msgs := make([]messages.Message, 50)
	for i := range msgs {
		msgs[i] = agentMessage(conv, messages.NewID(), time.Duration(i)*time.Millisecond)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, m := range msgs {
				s.Reconcile(insert(m))
			}
		}()
	}
	wg.Wait()

	got := s.Messages()
	if len(got) != len(msgs) {
		t.Fatalf("Len() = %d, want %d", len(got), len(msgs))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Fatalf("entry %d out of order", i)
		}
	}
}
