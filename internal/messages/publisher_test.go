package messages_test

import (
	"context"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/google/uuid"
)

func nextEvent(t *testing.T, s realtime.Stream) messages.Event {
	t.Helper()
	select {
	case p := <-s.C():
		e, err := messages.DecodeEvent(p)
		if err != nil {
			t.Fatalf("DecodeEvent() error = %v", err)
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return messages.Event{}
	}
}

func TestPublisher_BroadcastsWrites(t *testing.T) {
	ctx := context.Background()
	conv := uuid.New()
	hub := realtime.NewHub(8, logging.Discard())
	pub := messages.NewPublisher(messages.NewMemoryRepository(), hub, 0, logging.Discard())

	stream, err := hub.Subscribe(ctx, realtime.MessagesTopic(conv))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer stream.Close()

	m := agentMessage(conv, messages.NewID(), 0)
	if _, err := pub.Append(ctx, m); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	e := nextEvent(t, stream)
	if e.Kind != messages.EventInsert || e.Message == nil || e.Message.ID != m.ID {
		t.Errorf("insert event = %+v", e)
	}

	m.Content = "revised"
	pub.Update(ctx, m)
	if e := nextEvent(t, stream); e.Kind != messages.EventUpdate || e.Message.Content != "revised" {
		t.Errorf("update event = %+v", e)
	}

	pub.Delete(ctx, conv, m.ID)
	if e := nextEvent(t, stream); e.Kind != messages.EventDelete || e.MessageID != m.ID {
		t.Errorf("delete event = %+v", e)
	}
}

func TestPublisher_FailedWriteNotBroadcast(t *testing.T) {
	ctx := context.Background()
	conv := uuid.New()
	hub := realtime.NewHub(8, logging.Discard())
	pub := messages.NewPublisher(messages.NewMemoryRepository(), hub, 0, logging.Discard())

	stream, _ := hub.Subscribe(ctx, realtime.MessagesTopic(conv))
	defer stream.Close()

	if err := pub.Delete(ctx, conv, "missing"); err == nil {
		t.Fatal("Delete() error = nil")
	}

	select {
	case p := <-stream.C():
		t.Errorf("unexpected payload %s", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryRepository_AppendIdempotent(t *testing.T) {
	ctx := context.Background()
	conv := uuid.New()
	repo := messages.NewMemoryRepository()
	m := userMessage(conv, "a", 0)

	first, _ := repo.Append(ctx, m)
	m.Content = "changed"
	second, err := repo.Append(ctx, m)
	if err != nil {
		t.Fatalf("second Append() error = %v", err)
	}
	if second.Content != first.Content || repo.Len(conv) != 1 {
		t.Errorf("retry overwrote or duplicated: %q, len %d", second.Content, repo.Len(conv))
	}
}
