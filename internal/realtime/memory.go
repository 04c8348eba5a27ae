package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
)

// Hub is an in-process Transport.
// Subscribers are grouped by topic; a full subscriber buffer drops the payload for that subscriber only.
type Hub struct {
	topics map[string]map[*stream]struct{}
	buffer int
	closed bool
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a Hub whose subscriber streams buffer up to buffer payloads.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		topics: make(map[string]map[*stream]struct{}),
		buffer: buffer,
		logger: logger.With("system", "realtime", "transport", KindMemory),
	}
}

func (h *Hub) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		h.close()
	})
	return nil
}

func (h *Hub) Publish(ctx context.Context, topic string, payload []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	for s := range h.topics[topic] {
		if !s.deliver(payload) {
			h.logger.Warn("subscriber buffer full, payload dropped", "topic", topic)
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, topic string) (Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	var s *stream
	s = newStream(h.buffer, func() { h.unregister(topic, s) })

	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*stream]struct{})
	}
	h.topics[topic][s] = struct{}{}

	return s, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Disconnect fails every stream on topic, simulating a dropped connection.
func (h *Hub) Disconnect(topic string) {
	h.mu.RLock()
	streams := make([]*stream, 0, len(h.topics[topic]))
	for s := range h.topics[topic] {
		streams = append(streams, s)
	}
	h.mu.RUnlock()

	for _, s := range streams {
		s.fail(ErrClosed)
	}
}

func (h *Hub) unregister(topic string, s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) close() {
	h.mu.Lock()
	h.closed = true
	var all []*stream
	for _, subs := range h.topics {
		for s := range subs {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.fail(ErrClosed)
	}
}
