package subscriptions

import (
	"log/slog"
	"sync"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/google/uuid"
)

type subscription struct {
	conversationID uuid.UUID
	store          *messages.Store
	presence       *presence.Coordinator
	logger         *slog.Logger

	refs     int
	cancel   func()
	teardown sync.Once

	// ready closes once the first open finishes; err is its outcome and is
	// only read after ready.
	ready chan struct{}
	err   error

	// ended closes when the consume loop exits; done closes after teardown.
	ended chan struct{}
	done  chan struct{}
}

func (s *subscription) isReady() bool {
	select {
	case <-s.ready:
		return s.err == nil
	default:
		return false
	}
}

// Handle is one holder's reference to a conversation subscription.
type Handle struct {
	sub  *subscription
	mgr  *Manager
	once sync.Once
}

func (h *Handle) ConversationID() uuid.UUID {
	return h.sub.conversationID
}

func (h *Handle) Store() *messages.Store {
	return h.sub.store
}

func (h *Handle) Presence() *presence.Coordinator {
	return h.sub.presence
}

// Done closes when the subscription is torn down, whether by the last
// Close, by invalidation, or by shutdown.
func (h *Handle) Done() <-chan struct{} {
	return h.sub.done
}

// Close releases this reference. It is idempotent.
func (h *Handle) Close() {
	h.once.Do(func() {
		h.mgr.release(h.sub)
	})
}
