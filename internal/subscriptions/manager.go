// Package subscriptions keeps one live realtime subscription per open
// conversation and feeds remote changes into that conversation's Store and
// presence Coordinator.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/metrics"
	"github.com/JaimeStill/agent-chat/internal/presence"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source is the persistence view a subscription needs: history pages and
// single-row fetches for events that arrived without their row.
type Source interface {
	messages.PageLoader
	Find(ctx context.Context, id string) (*messages.Message, error)
}

// Manager owns the per-conversation subscriptions.
type Manager struct {
	transport realtime.Transport
	source    Source
	cfg       Config
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[uuid.UUID]*subscription
	closed bool
}

func NewManager(transport realtime.Transport, source Source, cfg Config, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		transport: transport,
		source:    source,
		cfg:       cfg.withDefaults(),
		logger:    logger.With("system", "subscriptions"),
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[uuid.UUID]*subscription),
	}
}

// Start tears every subscription down when the coordinator shuts down.
func (m *Manager) Start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		m.Shutdown()
	})
}

// Open returns a handle on the conversation's subscription, establishing
// it on first use. While a subscription is live, further opens share it.
// The first open loads the newest history page into the Store; concurrent
// opens of the same conversation wait for it. The manager lock is not held
// during transport or history I/O.
func (m *Manager) Open(ctx context.Context, conversationID uuid.UUID) (*Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}

	if sub, ok := m.subs[conversationID]; ok {
		sub.refs++
		m.mu.Unlock()
		return m.await(ctx, sub)
	}

	sub := &subscription{
		conversationID: conversationID,
		store:          messages.NewStore(conversationID, m.source),
		presence:       presence.New(conversationID, m.transport, m.cfg.TypingTTL, m.logger),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		ended:          make(chan struct{}),
		refs:           1,
		logger:         m.logger.With("conversation_id", conversationID),
	}
	m.subs[conversationID] = sub
	m.mu.Unlock()

	err := m.establish(ctx, sub)

	m.mu.Lock()
	current := m.subs[conversationID] == sub
	switch {
	case err != nil:
	case m.closed:
		err = ErrClosed
	case !current:
		err = ErrInvalidated
	}
	if err != nil {
		if current {
			delete(m.subs, conversationID)
		}
		sub.err = err
	}
	m.mu.Unlock()
	close(sub.ready)

	if err != nil {
		m.teardown(sub)
		return nil, err
	}

	sub.logger.Debug("subscription opened")
	return &Handle{sub: sub, mgr: m}, nil
}

// await waits for a pending subscription another caller is establishing.
// The caller's reference is already counted.
func (m *Manager) await(ctx context.Context, sub *subscription) (*Handle, error) {
	select {
	case <-sub.ready:
	case <-ctx.Done():
		m.release(sub)
		return nil, ctx.Err()
	}
	if sub.err != nil {
		return nil, sub.err
	}
	return &Handle{sub: sub, mgr: m}, nil
}

// establish subscribes both topics and loads the newest page, then starts
// the consume loop. Shutdown aborts it.
func (m *Manager) establish(ctx context.Context, sub *subscription) error {
	ioCtx, stop := context.WithCancel(ctx)
	defer stop()
	unregister := context.AfterFunc(m.ctx, stop)
	defer unregister()

	msgs, pres, err := m.subscribe(ioCtx, sub.conversationID)
	if err != nil {
		return err
	}

	if _, _, err := sub.store.LoadPage(ioCtx, nil, m.cfg.HistoryPageSize); err != nil {
		msgs.Close()
		pres.Close()
		return fmt.Errorf("load history: %w", err)
	}

	runCtx, cancel := context.WithCancel(m.ctx)
	sub.cancel = cancel
	metrics.SubscriptionsActive.Inc()

	go m.run(runCtx, sub, msgs, pres)
	return nil
}

// Close releases h. The subscription is torn down when its last handle is
// released. Closing a handle more than once has no further effect.
func (m *Manager) Close(h *Handle) {
	if h == nil {
		return
	}
	h.Close()
}

// Invalidate force-closes the conversation's subscription regardless of
// outstanding handles. Their Done channels close.
func (m *Manager) Invalidate(conversationID uuid.UUID) {
	m.mu.Lock()
	sub, ok := m.subs[conversationID]
	m.mu.Unlock()

	if ok {
		m.invalidate(sub)
	}
}

// invalidate tears sub down if it is still the conversation's current
// subscription.
func (m *Manager) invalidate(sub *subscription) {
	m.mu.Lock()
	current := m.subs[sub.conversationID] == sub
	if current {
		delete(m.subs, sub.conversationID)
	}
	m.mu.Unlock()

	if current {
		m.teardown(sub)
		sub.logger.Info("subscription invalidated")
	}
}

// Lookup returns the live subscription for a conversation without taking
// a reference.
func (m *Manager) Lookup(conversationID uuid.UUID) (*messages.Store, *presence.Coordinator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subs[conversationID]
	if !ok || !sub.isReady() {
		return nil, nil, false
	}
	return sub.store, sub.presence, true
}

// Active returns the number of live subscriptions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, sub := range m.subs {
		if sub.isReady() {
			n++
		}
	}
	return n
}

// Shutdown closes every subscription and rejects further opens.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := make([]*subscription, 0, len(m.subs))
	for id, sub := range m.subs {
		subs = append(subs, sub)
		delete(m.subs, id)
	}
	m.mu.Unlock()

	m.cancel()
	for _, sub := range subs {
		m.teardown(sub)
	}
	m.logger.Info("subscriptions shut down", "count", len(subs))
}

func (m *Manager) release(sub *subscription) {
	m.mu.Lock()
	sub.refs--
	last := sub.refs <= 0 && m.subs[sub.conversationID] == sub
	if last {
		delete(m.subs, sub.conversationID)
	}
	m.mu.Unlock()

	if last {
		m.teardown(sub)
		sub.logger.Debug("subscription closed")
	}
}

// teardown waits for a pending open to finish, then stops the consume loop
// if one was started.
func (m *Manager) teardown(sub *subscription) {
	sub.teardown.Do(func() {
		<-sub.ready
		if sub.cancel != nil {
			sub.cancel()
			<-sub.ended
			metrics.SubscriptionsActive.Dec()
		}
		sub.presence.Close()
		close(sub.done)
	})
}

// subscribe opens the message and presence topics together; either both
// streams are returned or neither.
func (m *Manager) subscribe(ctx context.Context, conversationID uuid.UUID) (realtime.Stream, realtime.Stream, error) {
	var msgs, pres realtime.Stream

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := m.transport.Subscribe(gctx, realtime.MessagesTopic(conversationID))
		if err != nil {
			return fmt.Errorf("subscribe messages: %w", err)
		}
		msgs = s
		return nil
	})
	g.Go(func() error {
		s, err := m.transport.Subscribe(gctx, realtime.PresenceTopic(conversationID))
		if err != nil {
			return fmt.Errorf("subscribe presence: %w", err)
		}
		pres = s
		return nil
	})

	if err := g.Wait(); err != nil {
		if msgs != nil {
			msgs.Close()
		}
		if pres != nil {
			pres.Close()
		}
		return nil, nil, err
	}
	return msgs, pres, nil
}

// run consumes both streams until ctx ends, reconnecting whenever a
// stream fails.
func (m *Manager) run(ctx context.Context, sub *subscription, msgs, pres realtime.Stream) {
	defer close(sub.ended)

	b := newBackoff(m.cfg.ReconnectMin, m.cfg.ReconnectMax)
	for {
		err := m.consume(ctx, sub, msgs, pres)
		msgs.Close()
		pres.Close()

		if ctx.Err() != nil {
			return
		}
		sub.logger.Warn("subscription stream ended", "error", err)

		var ok bool
		msgs, pres, ok = m.reconnect(ctx, sub, b)
		if !ok {
			return
		}
		b.Reset()
	}
}

func (m *Manager) consume(ctx context.Context, sub *subscription, msgs, pres realtime.Stream) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs.C():
			if !ok {
				return streamErr(msgs)
			}
			m.applyEvent(ctx, sub, payload)
		case payload, ok := <-pres.C():
			if !ok {
				return streamErr(pres)
			}
			if err := sub.presence.Receive(payload); err != nil {
				sub.logger.Warn("discarding presence signal", "error", err)
			}
		}
	}
}

func (m *Manager) applyEvent(ctx context.Context, sub *subscription, payload []byte) {
	e, err := messages.DecodeEvent(payload)
	if err != nil {
		sub.logger.Warn("discarding message event", "error", err)
		return
	}

	if e.Kind == messages.EventClosed {
		// teardown waits for this loop to exit.
		go m.invalidate(sub)
		return
	}

	if e.Partial() {
		msg, err := m.source.Find(ctx, e.MessageID)
		if err != nil {
			if errors.Is(err, messages.ErrNotFound) {
				return
			}
			sub.logger.Error("fetch event row failed", "message_id", e.MessageID, "error", err)
			return
		}
		e.Message = msg
	}

	if sub.store.Reconcile(e) {
		metrics.EventsReconciled.WithLabelValues(string(e.Kind)).Inc()
	}
}

// reconnect resubscribes with backoff, then resets presence and reloads the
// newest page so events missed while disconnected are caught up.
func (m *Manager) reconnect(ctx context.Context, sub *subscription, b *backoff) (realtime.Stream, realtime.Stream, bool) {
	for {
		timer := time.NewTimer(b.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, false
		case <-timer.C:
		}

		metrics.Reconnects.Inc()
		msgs, pres, err := m.subscribe(ctx, sub.conversationID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, false
			}
			sub.logger.Warn("reconnect failed", "error", err)
			continue
		}

		sub.presence.Reset()
		if _, _, err := sub.store.LoadPage(ctx, nil, m.cfg.HistoryPageSize); err != nil {
			sub.logger.Error("catch-up load failed", "error", err)
		}

		sub.logger.Info("subscription reconnected")
		return msgs, pres, true
	}
}

func streamErr(s realtime.Stream) error {
	if err := s.Err(); err != nil {
		return err
	}
	return realtime.ErrClosed
}
