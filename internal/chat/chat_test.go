package chat_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/chat"
	"github.com/JaimeStill/agent-chat/internal/conversations"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/pipeline"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/internal/subscriptions"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/google/uuid"
)

var pageConfig = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

type scriptedInvoker struct {
	mu    sync.Mutex
	steps map[string]func(ctx context.Context) (*agents.Response, error)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, agent agents.Agent, userText string, prior pipeline.ExecutionContext) (*agents.Response, error) {
	s.mu.Lock()
	step, ok := s.steps[agent.Name]
	s.mu.Unlock()
	if ok {
		return step(ctx)
	}
	return &agents.Response{
		Type:    messages.ContentText,
		Data:    map[string]any{"text": agent.Name + " reply"},
		Summary: agent.Name + " reply",
	}, nil
}

// flakyRepository fails Append while fail is set.
type flakyRepository struct {
	*messages.MemoryRepository
	fail atomic.Bool
}

func (f *flakyRepository) Append(ctx context.Context, msg messages.Message) (*messages.Message, error) {
	if f.fail.Load() {
		return nil, errors.New("database unavailable")
	}
	return f.MemoryRepository.Append(ctx, msg)
}

var subsConfig = subscriptions.Config{
	HistoryPageSize: 50,
	TypingTTL:       time.Minute,
	ReconnectMin:    5 * time.Millisecond,
	ReconnectMax:    20 * time.Millisecond,
}

type fixture struct {
	sys      chat.System
	registry *agents.Registry
	convs    *conversations.Memory
	repo     *flakyRepository
	invoker  *scriptedInvoker
	subs     *subscriptions.Manager
	hub      *realtime.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()

	hub := realtime.NewHub(64, logger)
	repo := &flakyRepository{MemoryRepository: messages.NewMemoryRepository()}
	pub := messages.NewPublisher(repo, hub, 0, logger)

	subs := subscriptions.NewManager(hub, pub, subsConfig, logger)
	t.Cleanup(subs.Shutdown)

	invoker := &scriptedInvoker{steps: make(map[string]func(context.Context) (*agents.Response, error))}
	registry := agents.NewRegistry(logger, pageConfig)
	convs := conversations.NewMemory(pageConfig)

	sys := chat.New(chat.Deps{
		Agents:        registry,
		Conversations: convs,
		Messages:      pub,
		Subscriptions: subs,
		Runner:        pipeline.NewRunner(invoker, time.Second, nil, logger),
		Logger:        logger,
	})

	return &fixture{sys: sys, registry: registry, convs: convs, repo: repo, invoker: invoker, subs: subs, hub: hub}
}

func (f *fixture) agent(t *testing.T, name string, weight int) agents.Agent {
	t.Helper()
	a, err := f.registry.Create(context.Background(), agents.CreateCommand{Name: name, Weight: weight})
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", name, err)
	}
	return *a
}

func (f *fixture) conversation(t *testing.T) uuid.UUID {
	t.Helper()
	c, err := f.convs.Create(context.Background(), conversations.CreateCommand{Title: "VQ review"})
	if err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}
	return c.ID
}

func (f *fixture) subscribe(t *testing.T, conv uuid.UUID) *recorder {
	t.Helper()
	rec := &recorder{}
	stop, err := f.sys.Subscribe(context.Background(), conv, rec.add)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	t.Cleanup(stop)
	return rec
}

type recorder struct {
	mu      sync.Mutex
	updates []chat.Update
}

func (r *recorder) add(u chat.Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) has(kind chat.UpdateKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.updates {
		if u.Kind == kind {
			return true
		}
	}
	return false
}

func wait(t *testing.T, turn *chat.Turn) (pipeline.Result, error) {
	t.Helper()
	select {
	case <-turn.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("turn did not finish")
	}
	return turn.Result()
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendUserMessage_SummarizeScenario(t *testing.T) {
	f := newFixture(t)
	boq, price, supplier := f.agent(t, "boq", 0), f.agent(t, "price", 1), f.agent(t, "supplier", 2)
	conv := f.conversation(t)
	rec := f.subscribe(t, conv)

	turn, err := f.sys.SendUserMessage(context.Background(), chat.SendCommand{
		ConversationID: conv,
		Text:           "Summarize this VQ",
		AgentIDs:       []uuid.UUID{boq.ID, price.ID, supplier.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}

	if _, err := wait(t, turn); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	msgs := f.sys.Messages(conv)
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if msgs[0].Author != messages.AuthorUser || msgs[0].Content != "Summarize this VQ" {
		t.Errorf("first message = %+v", msgs[0])
	}
	for i, want := range []agents.Agent{boq, price, supplier} {
		m := msgs[i+1]
		if m.AgentID == nil || *m.AgentID != want.ID {
			t.Errorf("message %d should come from %s", i+1, want.Name)
		}
		if m.ReplyTo == nil || *m.ReplyTo != msgs[0].ID {
			t.Errorf("message %d should reply to the user message", i+1)
		}
	}

	if n := f.repo.Len(conv); n != 4 {
		t.Errorf("persisted = %d, want 4", n)
	}
	eventually(t, "delivery echoes", func() bool {
		for _, m := range f.sys.Messages(conv) {
			if m.Status != messages.StatusDelivered {
				return false
			}
		}
		return true
	})
	if !rec.has(chat.UpdateMessages) {
		t.Error("subscriber should receive message updates")
	}
}

func TestSendUserMessage_FailedAgentContinues(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.agent(t, "a", 0), f.agent(t, "b", 1), f.agent(t, "c", 2)
	f.invoker.steps["b"] = func(context.Context) (*agents.Response, error) {
		return nil, errors.New("provider unavailable")
	}
	conv := f.conversation(t)
	f.subscribe(t, conv)

	turn, err := f.sys.SendUserMessage(context.Background(), chat.SendCommand{
		ConversationID: conv, Text: "go", AgentIDs: []uuid.UUID{a.ID, b.ID, c.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	result, err := wait(t, turn)
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}

	var errorsSeen int
	for _, m := range f.sys.Messages(conv) {
		if m.IsError {
			errorsSeen++
		}
	}
	if errorsSeen != 1 {
		t.Errorf("error messages = %d, want 1", errorsSeen)
	}
}

func TestSendUserMessage_Validation(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	disabled := false
	off, _ := f.registry.Create(context.Background(), agents.CreateCommand{Name: "off", Enabled: &disabled})

	tests := []struct {
		name string
		cmd  chat.SendCommand
		want error
	}{
		{"empty text", chat.SendCommand{ConversationID: conv, Text: "  "}, chat.ErrEmptyMessage},
		{"unknown conversation", chat.SendCommand{ConversationID: uuid.New(), Text: "hi"}, conversations.ErrNotFound},
		{"disabled agent", chat.SendCommand{ConversationID: conv, Text: "hi", AgentIDs: []uuid.UUID{off.ID}}, agents.ErrDisabled},
		{"unknown agent", chat.SendCommand{ConversationID: conv, Text: "hi", AgentIDs: []uuid.UUID{uuid.New()}}, agents.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.sys.SendUserMessage(context.Background(), tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRetry_RestartsTurnAfterPersistFailure(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "a", 0)
	conv := f.conversation(t)
	f.subscribe(t, conv)

	f.repo.fail.Store(true)
	turn, err := f.sys.SendUserMessage(context.Background(), chat.SendCommand{
		ConversationID: conv, Text: "hello", AgentIDs: []uuid.UUID{a.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	if _, err := wait(t, turn); err == nil {
		t.Fatal("turn should fail when the user message cannot be persisted")
	}

	msgs := f.sys.Messages(conv)
	if len(msgs) != 1 || msgs[0].Status != messages.StatusFailed {
		t.Fatalf("expected one failed user message, got %+v", msgs)
	}

	f.repo.fail.Store(false)
	retried, err := f.sys.Retry(context.Background(), msgs[0].ID)
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if retried == nil {
		t.Fatal("Retry should start the pending turn")
	}
	if _, err := wait(t, retried); err != nil {
		t.Fatalf("retried turn failed: %v", err)
	}

	if got := f.sys.Messages(conv); len(got) != 2 || got[0].ID != msgs[0].ID {
		t.Errorf("after retry messages = %+v", got)
	}
	if _, err := f.sys.Retry(context.Background(), msgs[0].ID); !errors.Is(err, chat.ErrNotRetryable) {
		t.Errorf("second retry err = %v, want ErrNotRetryable", err)
	}
}

func TestEditMessage(t *testing.T) {
	f := newFixture(t)
	a := f.agent(t, "a", 0)
	conv := f.conversation(t)
	f.subscribe(t, conv)
	ctx := context.Background()

	turn, err := f.sys.SendUserMessage(ctx, chat.SendCommand{
		ConversationID: conv, Text: "first draft", AgentIDs: []uuid.UUID{a.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	if _, err := wait(t, turn); err != nil {
		t.Fatalf("turn failed: %v", err)
	}

	edited, err := f.sys.EditMessage(ctx, turn.UserMessage.ID, "  second draft ")
	if err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}
	if edited.Content != "second draft" {
		t.Errorf("edited content = %q", edited.Content)
	}
	eventually(t, "edit in projection", func() bool {
		msgs := f.sys.Messages(conv)
		return len(msgs) == 2 && msgs[0].Content == "second draft"
	})

	reply := f.sys.Messages(conv)[1]
	if _, err := f.sys.EditMessage(ctx, reply.ID, "rewrite"); !errors.Is(err, chat.ErrNotEditable) {
		t.Errorf("agent edit err = %v, want ErrNotEditable", err)
	}
	if _, err := f.sys.EditMessage(ctx, turn.UserMessage.ID, " "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Errorf("blank edit err = %v, want ErrEmptyMessage", err)
	}
	if _, err := f.sys.EditMessage(ctx, "missing", "x"); !errors.Is(err, messages.ErrNotFound) {
		t.Errorf("missing edit err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMessage(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.subscribe(t, conv)
	ctx := context.Background()

	turn, err := f.sys.SendUserMessage(ctx, chat.SendCommand{ConversationID: conv, Text: "keep?"})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	wait(t, turn)

	if err := f.sys.DeleteMessage(ctx, turn.UserMessage.ID); err != nil {
		t.Fatalf("DeleteMessage failed: %v", err)
	}
	if f.repo.Len(conv) != 0 {
		t.Errorf("repo len = %d, want 0", f.repo.Len(conv))
	}
	eventually(t, "delete in projection", func() bool { return len(f.sys.Messages(conv)) == 0 })

	f.repo.fail.Store(true)
	unsent, err := f.sys.SendUserMessage(ctx, chat.SendCommand{ConversationID: conv, Text: "lost"})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	wait(t, unsent)
	f.repo.fail.Store(false)

	if err := f.sys.DeleteMessage(ctx, unsent.UserMessage.ID); err != nil {
		t.Fatalf("DeleteMessage of unsent message failed: %v", err)
	}
	if len(f.sys.Messages(conv)) != 0 {
		t.Error("unsent message should leave the projection")
	}
	if _, err := f.sys.Retry(ctx, unsent.UserMessage.ID); !errors.Is(err, chat.ErrNotRetryable) {
		t.Errorf("retry after delete err = %v, want ErrNotRetryable", err)
	}
	if err := f.sys.DeleteMessage(ctx, unsent.UserMessage.ID); !errors.Is(err, messages.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCancel_StopsRun(t *testing.T) {
	f := newFixture(t)
	slow, next := f.agent(t, "slow", 0), f.agent(t, "next", 1)
	started := make(chan struct{})
	f.invoker.steps["slow"] = func(ctx context.Context) (*agents.Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	conv := f.conversation(t)
	f.subscribe(t, conv)

	turn, err := f.sys.SendUserMessage(context.Background(), chat.SendCommand{
		ConversationID: conv, Text: "go", AgentIDs: []uuid.UUID{slow.ID, next.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}

	<-started
	if err := f.sys.Cancel(turn.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if _, err := wait(t, turn); !errors.Is(err, pipeline.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	if got := len(f.sys.Messages(conv)); got != 1 {
		t.Errorf("messages = %d, want only the user message", got)
	}
	if err := f.sys.Cancel(turn.ID); !errors.Is(err, chat.ErrRunNotFound) {
		t.Errorf("cancel after finish err = %v", err)
	}
}

func TestForget_ClosesSubscriptionAndCancelsRuns(t *testing.T) {
	f := newFixture(t)
	slow := f.agent(t, "slow", 0)
	started := make(chan struct{})
	f.invoker.steps["slow"] = func(ctx context.Context) (*agents.Response, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	conv := f.conversation(t)
	rec := f.subscribe(t, conv)

	turn, err := f.sys.SendUserMessage(context.Background(), chat.SendCommand{
		ConversationID: conv, Text: "go", AgentIDs: []uuid.UUID{slow.ID},
	})
	if err != nil {
		t.Fatalf("SendUserMessage failed: %v", err)
	}
	<-started

	f.sys.Forget(context.Background(), conv)

	if _, err := wait(t, turn); !errors.Is(err, pipeline.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
	eventually(t, "closed update", func() bool { return rec.has(chat.UpdateClosed) })
	if f.sys.Messages(conv) != nil {
		t.Error("forgotten conversation should have no open projection")
	}
}

func TestForget_ReleasesOtherProcesses(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	f.subscribe(t, conv)

	peer := subscriptions.NewManager(f.hub, f.repo, subsConfig, logging.Discard())
	t.Cleanup(peer.Shutdown)
	h, err := peer.Open(context.Background(), conv)
	if err != nil {
		t.Fatalf("peer Open failed: %v", err)
	}
	defer h.Close()

	f.sys.Forget(context.Background(), conv)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("peer subscription survived the conversation delete")
	}
	if _, _, ok := peer.Lookup(conv); ok {
		t.Error("peer still exposes the deleted conversation")
	}
}

func TestTyping(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t)
	rec := f.subscribe(t, conv)
	ctx := context.Background()

	if err := f.sys.NotifyTyping(ctx, conv, "u1", "Ada"); err != nil {
		t.Fatalf("NotifyTyping failed: %v", err)
	}
	if err := f.sys.NotifyTyping(ctx, conv, "u2", "Grace"); err != nil {
		t.Fatalf("NotifyTyping failed: %v", err)
	}

	typers := f.sys.LiveTypers(conv, "u1")
	if len(typers) != 1 || typers[0].DisplayName != "Grace" {
		t.Errorf("typers = %+v", typers)
	}
	if !rec.has(chat.UpdateTypers) {
		t.Error("subscriber should receive typer updates")
	}
	if err := f.sys.NotifyTyping(ctx, conv, "", "nobody"); !errors.Is(err, chat.ErrMissingSender) {
		t.Errorf("err = %v, want ErrMissingSender", err)
	}
}

func TestLoadPage_RequiresOpenConversation(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.sys.LoadPage(context.Background(), uuid.New(), nil, 10); !errors.Is(err, chat.ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
}
