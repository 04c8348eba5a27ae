package conversations

import (
	"context"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/google/uuid"
)

// System defines conversation record operations.
type System interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Conversation], error)
	Find(ctx context.Context, id uuid.UUID) (*Conversation, error)
	Create(ctx context.Context, cmd CreateCommand) (*Conversation, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Conversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
