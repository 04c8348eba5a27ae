package realtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/google/uuid"
)

func receive(t *testing.T, s realtime.Stream) []byte {
	t.Helper()
	select {
	case p, ok := <-s.C():
		if !ok {
			t.Fatal("stream closed unexpectedly")
		}
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := realtime.NewHub(8, logging.Discard())
	ctx := context.Background()
	topic := realtime.MessagesTopic(uuid.New())

	a, err := hub.Subscribe(ctx, topic)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	b, _ := hub.Subscribe(ctx, topic)
	other, _ := hub.Subscribe(ctx, "unrelated")

	if err := hub.Publish(ctx, topic, []byte("evt")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if got := receive(t, a); string(got) != "evt" {
		t.Errorf("a received %q", got)
	}
	if got := receive(t, b); string(got) != "evt" {
		t.Errorf("b received %q", got)
	}

	select {
	case p := <-other.C():
		t.Errorf("unrelated topic received %q", p)
	default:
	}
}

func TestHub_CloseUnregisters(t *testing.T) {
	hub := realtime.NewHub(8, logging.Discard())
	topic := realtime.PresenceTopic(uuid.New())

	s, _ := hub.Subscribe(context.Background(), topic)
	if hub.Subscribers(topic) != 1 {
		t.Fatalf("Subscribers() = %d, want 1", hub.Subscribers(topic))
	}

	s.Close()
	s.Close()

	if hub.Subscribers(topic) != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", hub.Subscribers(topic))
	}
	if _, ok := <-s.C(); ok {
		t.Error("channel open after Close")
	}
	if s.Err() != nil {
		t.Errorf("Err() = %v after Close, want nil", s.Err())
	}
}

func TestHub_DisconnectReportsError(t *testing.T) {
	hub := realtime.NewHub(8, logging.Discard())
	topic := realtime.MessagesTopic(uuid.New())

	s, _ := hub.Subscribe(context.Background(), topic)
	hub.Disconnect(topic)

	if _, ok := <-s.C(); ok {
		t.Fatal("channel open after Disconnect")
	}
	if !errors.Is(s.Err(), realtime.ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", s.Err())
	}
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := realtime.NewHub(1, logging.Discard())
	ctx := context.Background()

	s, _ := hub.Subscribe(ctx, "t")
	hub.Publish(ctx, "t", []byte("1"))
	hub.Publish(ctx, "t", []byte("2"))

	if got := receive(t, s); string(got) != "1" {
		t.Errorf("received %q, want 1", got)
	}
	select {
	case p := <-s.C():
		t.Errorf("received dropped payload %q", p)
	default:
	}
}

func TestHub_Shutdown(t *testing.T) {
	hub := realtime.NewHub(8, logging.Discard())
	lc := lifecycle.New()
	hub.Start(lc)

	s, _ := hub.Subscribe(context.Background(), "t")

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	if _, ok := <-s.C(); ok {
		t.Error("stream open after shutdown")
	}
	if err := hub.Publish(context.Background(), "t", nil); !errors.Is(err, realtime.ErrClosed) {
		t.Errorf("Publish() after shutdown = %v, want ErrClosed", err)
	}
}

func TestTopics(t *testing.T) {
	id := uuid.MustParse("6f1c2f7e-8b7a-4a53-9c57-0d3f3c1a9b10")

	if got := realtime.MessagesTopic(id); got != "conversation:6f1c2f7e-8b7a-4a53-9c57-0d3f3c1a9b10:messages" {
		t.Errorf("MessagesTopic() = %q", got)
	}
	if got := realtime.PresenceTopic(id); len(got) > 63 {
		t.Errorf("PresenceTopic() exceeds postgres identifier limit: %d", len(got))
	}
}

func TestNew_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		cfg     realtime.Config
		wantErr bool
	}{
		{"memory", realtime.Config{Kind: realtime.KindMemory}, false},
		{"default", realtime.Config{}, false},
		{"redis", realtime.Config{Kind: realtime.KindRedis, RedisURL: "redis://localhost:6379/0"}, false},
		{"redis bad url", realtime.Config{Kind: realtime.KindRedis, RedisURL: "::"}, true},
		{"postgres without db", realtime.Config{Kind: realtime.KindPostgres}, true},
		{"unknown", realtime.Config{Kind: "carrier-pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := realtime.New(tt.cfg, nil, "", logging.Discard())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tr == nil {
				t.Error("New() returned nil transport")
			}
		})
	}
}
