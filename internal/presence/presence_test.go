package presence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/logging"
	"github.com/google/uuid"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func names(entries []presence.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.DisplayName
	}
	return out
}

func TestCoordinator_TTLExpiryAndReappearance(t *testing.T) {
	clock := newClock()
	c := presence.New(uuid.New(), nil, 5*time.Second, logging.Discard(), presence.WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	c.NotifyTyping(ctx, "u1", "Ada")

	clock.Advance(3 * time.Second)
	if got := c.LiveTypers(""); len(got) != 1 {
		t.Fatalf("at 3s LiveTypers() = %v, want Ada", names(got))
	}

	clock.Advance(3 * time.Second)
	if got := c.LiveTypers(""); len(got) != 0 {
		t.Fatalf("at 6s LiveTypers() = %v, want empty", names(got))
	}

	c.NotifyTyping(ctx, "u1", "Ada")
	if got := c.LiveTypers(""); len(got) != 1 {
		t.Errorf("after new input LiveTypers() = %v, want Ada", names(got))
	}
}

func TestCoordinator_RefreshExtendsLifetime(t *testing.T) {
	clock := newClock()
	c := presence.New(uuid.New(), nil, 5*time.Second, logging.Discard(), presence.WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	c.NotifyTyping(ctx, "u1", "Ada")
	clock.Advance(4 * time.Second)
	c.NotifyTyping(ctx, "u1", "Ada")
	clock.Advance(4 * time.Second)

	if got := c.LiveTypers(""); len(got) != 1 {
		t.Errorf("LiveTypers() = %v, want Ada", names(got))
	}
}

func TestCoordinator_ExcludeAndOrder(t *testing.T) {
	c := presence.New(uuid.New(), nil, time.Minute, logging.Discard())
	defer c.Close()
	ctx := context.Background()

	c.NotifyTyping(ctx, "u3", "Cy")
	c.NotifyTyping(ctx, "u1", "Ada")
	c.NotifyTyping(ctx, "u2", "Bo")

	got := names(c.LiveTypers("u2"))
	if len(got) != 2 || got[0] != "Ada" || got[1] != "Cy" {
		t.Errorf("LiveTypers(u2) = %v, want [Ada Cy]", got)
	}
}

func TestCoordinator_TimerExpiryNotifies(t *testing.T) {
	c := presence.New(uuid.New(), nil, 30*time.Millisecond, logging.Discard())
	defer c.Close()

	emptied := make(chan struct{}, 1)
	c.Listen(func(live []presence.Entry) {
		if len(live) == 0 {
			select {
			case emptied <- struct{}{}:
			default:
			}
		}
	})

	c.NotifyTyping(context.Background(), "u1", "Ada")

	select {
	case <-emptied:
	case <-time.After(time.Second):
		t.Fatal("expiry did not notify listeners")
	}
}

func TestCoordinator_Reset(t *testing.T) {
	c := presence.New(uuid.New(), nil, time.Minute, logging.Discard())
	defer c.Close()

	c.NotifyTyping(context.Background(), "u1", "Ada")
	c.Reset()

	if got := c.LiveTypers(""); len(got) != 0 {
		t.Errorf("LiveTypers() after Reset = %v", names(got))
	}
}

func TestCoordinator_BroadcastAndReceive(t *testing.T) {
	ctx := context.Background()
	conv := uuid.New()
	hub := realtime.NewHub(8, logging.Discard())

	stream, err := hub.Subscribe(ctx, realtime.PresenceTopic(conv))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer stream.Close()

	sender := presence.New(conv, hub, time.Minute, logging.Discard())
	receiver := presence.New(conv, nil, time.Minute, logging.Discard())
	defer sender.Close()
	defer receiver.Close()

	if err := sender.NotifyTyping(ctx, "u1", "Ada"); err != nil {
		t.Fatalf("NotifyTyping() error = %v", err)
	}

	select {
	case p := <-stream.C():
		if err := receiver.Receive(p); err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no presence payload published")
	}

	if got := names(receiver.LiveTypers("")); len(got) != 1 || got[0] != "Ada" {
		t.Errorf("receiver LiveTypers() = %v", got)
	}
}

func TestCoordinator_Invalid(t *testing.T) {
	c := presence.New(uuid.New(), nil, time.Minute, logging.Discard())
	defer c.Close()

	if err := c.NotifyTyping(context.Background(), " ", "x"); !errors.Is(err, presence.ErrMissingParticipant) {
		t.Errorf("NotifyTyping() error = %v", err)
	}
	if err := c.Receive([]byte(`{`)); !errors.Is(err, presence.ErrInvalidSignal) {
		t.Errorf("Receive(malformed) error = %v", err)
	}
	if err := c.Receive([]byte(`{"display_name":"x"}`)); !errors.Is(err, presence.ErrInvalidSignal) {
		t.Errorf("Receive(no id) error = %v", err)
	}
}
