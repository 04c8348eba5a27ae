package messages

import (
	"context"
	"log/slog"

	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/google/uuid"
)

// Publisher decorates a Repository, broadcasting a change Event on the
// conversation's message topic after every successful write. A failed
// broadcast is logged; the write itself still succeeded.
type Publisher struct {
	Repository
	transport  realtime.Transport
	maxPayload int
	logger     *slog.Logger
}

// NewPublisher wraps repo. maxPayload bounds the encoded event size; zero
// means unbounded.
func NewPublisher(repo Repository, transport realtime.Transport, maxPayload int, logger *slog.Logger) *Publisher {
	return &Publisher{
		Repository: repo,
		transport:  transport,
		maxPayload: maxPayload,
		logger:     logger.With("system", "messages", "component", "publisher"),
	}
}

func (p *Publisher) Append(ctx context.Context, msg Message) (*Message, error) {
	m, err := p.Repository.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, Event{Kind: EventInsert, ConversationID: m.ConversationID, MessageID: m.ID, Message: m})
	return m, nil
}

func (p *Publisher) Update(ctx context.Context, msg Message) (*Message, error) {
	m, err := p.Repository.Update(ctx, msg)
	if err != nil {
		return nil, err
	}
	p.publish(ctx, Event{Kind: EventUpdate, ConversationID: m.ConversationID, MessageID: m.ID, Message: m})
	return m, nil
}

func (p *Publisher) Delete(ctx context.Context, conversationID uuid.UUID, id string) error {
	if err := p.Repository.Delete(ctx, conversationID, id); err != nil {
		return err
	}
	p.publish(ctx, Event{Kind: EventDelete, ConversationID: conversationID, MessageID: id})
	return nil
}

// PublishClosed announces that the conversation was deleted so every
// process holding a subscription for it lets go.
func (p *Publisher) PublishClosed(ctx context.Context, conversationID uuid.UUID) {
	p.publish(ctx, Event{Kind: EventClosed, ConversationID: conversationID})
}

func (p *Publisher) publish(ctx context.Context, e Event) {
	payload, err := EncodeEvent(e, p.maxPayload)
	if err != nil {
		p.logger.Error("encode change event failed", "kind", e.Kind, "id", e.MessageID, "error", err)
		return
	}
	if err := p.transport.Publish(ctx, realtime.MessagesTopic(e.ConversationID), payload); err != nil {
		p.logger.Warn("publish change event failed", "kind", e.Kind, "id", e.MessageID, "error", err)
	}
}
