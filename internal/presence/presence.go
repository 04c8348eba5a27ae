// Package presence tracks which participants are typing in a conversation.
//
// Entries are ephemeral: they live for a TTL after the participant's last
// signal and are never persisted.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/internal/metrics"
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/google/uuid"
)

// Entry is one live typer.
type Entry struct {
	ParticipantID string    `json:"participant_id"`
	DisplayName   string    `json:"display_name"`
	LastActivity  time.Time `json:"last_activity"`
}

// Signal is the payload broadcast on a conversation's presence topic.
type Signal struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

type tracked struct {
	entry Entry
	timer *time.Timer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock used to stamp and age entries.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator holds the typing set for one conversation.
type Coordinator struct {
	conversationID uuid.UUID
	transport      realtime.Transport
	ttl            time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu      sync.Mutex
	entries map[string]*tracked

	listenMu     sync.Mutex
	listeners    map[int]func([]Entry)
	nextListener int
}

// New creates a Coordinator. transport may be nil, in which case signals
// stay local.
func New(conversationID uuid.UUID, transport realtime.Transport, ttl time.Duration, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		conversationID: conversationID,
		transport:      transport,
		ttl:            ttl,
		now:            time.Now,
		logger:         logger.With("system", "presence", "conversation_id", conversationID),
		entries:        make(map[string]*tracked),
		listeners:      make(map[int]func([]Entry)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) TTL() time.Duration {
	return c.ttl
}

// NotifyTyping records local input from a participant and broadcasts it.
// Each call restarts the participant's expiry.
func (c *Coordinator) NotifyTyping(ctx context.Context, participantID, displayName string) error {
	if strings.TrimSpace(participantID) == "" {
		return ErrMissingParticipant
	}

	c.upsert(participantID, displayName)
	metrics.TypingSignals.WithLabelValues("local").Inc()

	if c.transport == nil {
		return nil
	}

	payload, err := json.Marshal(Signal{ParticipantID: participantID, DisplayName: displayName})
	if err != nil {
		return err
	}
	if err := c.transport.Publish(ctx, realtime.PresenceTopic(c.conversationID), payload); err != nil {
		return fmt.Errorf("broadcast typing: %w", err)
	}
	return nil
}

// Receive applies a remote typing signal, stamped with the local receive time.
func (c *Coordinator) Receive(payload []byte) error {
	var s Signal
	if err := json.Unmarshal(payload, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if strings.TrimSpace(s.ParticipantID) == "" {
		return fmt.Errorf("%w: %v", ErrInvalidSignal, ErrMissingParticipant)
	}

	c.upsert(s.ParticipantID, s.DisplayName)
	metrics.TypingSignals.WithLabelValues("remote").Inc()
	return nil
}

// LiveTypers returns participants whose last activity is within the TTL,
// excluding exclude, ordered by display name.
func (c *Coordinator) LiveTypers(exclude string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live(exclude)
}

// Reset clears the typing set, as after a reconnect.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	if len(c.entries) == 0 {
		c.mu.Unlock()
		return
	}
	for id, t := range c.entries {
		t.timer.Stop()
		delete(c.entries, id)
	}
	c.mu.Unlock()

	c.notify()
}

// Close stops pending expiry timers and drops listeners.
func (c *Coordinator) Close() {
	c.mu.Lock()
	for id, t := range c.entries {
		t.timer.Stop()
		delete(c.entries, id)
	}
	c.mu.Unlock()

	c.listenMu.Lock()
	clear(c.listeners)
	c.listenMu.Unlock()
}

// Listen registers fn to receive the live set after every change and
// returns a function that removes it.
func (c *Coordinator) Listen(fn func([]Entry)) func() {
	c.listenMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.listenMu.Lock()
			delete(c.listeners, id)
			c.listenMu.Unlock()
		})
	}
}

func (c *Coordinator) upsert(participantID, displayName string) {
	c.mu.Lock()
	now := c.now()
	if t, ok := c.entries[participantID]; ok {
		t.entry.LastActivity = now
		if displayName != "" {
			t.entry.DisplayName = displayName
		}
		t.timer.Reset(c.ttl)
	} else {
		c.entries[participantID] = &tracked{
			entry: Entry{ParticipantID: participantID, DisplayName: displayName, LastActivity: now},
			timer: time.AfterFunc(c.ttl, func() { c.expire(participantID) }),
		}
	}
	c.mu.Unlock()

	c.notify()
}

func (c *Coordinator) expire(participantID string) {
	c.mu.Lock()
	t, ok := c.entries[participantID]
	if !ok || c.now().Sub(t.entry.LastActivity) < c.ttl {
		c.mu.Unlock()
		return
	}
	delete(c.entries, participantID)
	c.mu.Unlock()

	c.logger.Debug("typing expired", "participant_id", participantID)
	c.notify()
}

// live filters and sorts entries. Caller holds mu.
func (c *Coordinator) live(exclude string) []Entry {
	now := c.now()
	out := make([]Entry, 0, len(c.entries))
	for id, t := range c.entries {
		if id == exclude || now.Sub(t.entry.LastActivity) >= c.ttl {
			continue
		}
		out = append(out, t.entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ParticipantID < out[j].ParticipantID
	})
	return out
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	snapshot := c.live("")
	c.mu.Unlock()

	c.listenMu.Lock()
	fns := make([]func([]Entry), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenMu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
