package agents

import (
	"context"
	"fmt"

	"github.com/JaimeStill/agent-chat/pkg/pagination"
	"github.com/google/uuid"
)

// System defines the interface for agent storage and retrieval operations.
// Mutations only affect lookups made after they return; values already
// handed out are copies.
type System interface {
	// List returns enabled agents in display order.
	List(ctx context.Context) ([]Agent, error)

	Search(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Agent], error)
	Find(ctx context.Context, id uuid.UUID) (*Agent, error)
	Create(ctx context.Context, cmd CreateCommand) (*Agent, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Agent, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Snapshot returns copies of the requested agents in request order.
	// Unknown or disabled ids fail the whole call.
	Snapshot(ctx context.Context, ids []uuid.UUID) ([]Agent, error)
}

// orderSnapshot arranges found agents in the order ids were requested.
func orderSnapshot(ids []uuid.UUID, found map[uuid.UUID]Agent) ([]Agent, error) {
	out := make([]Agent, 0, len(ids))
	for _, id := range ids {
		a, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if !a.Enabled {
			return nil, fmt.Errorf("%w: %s", ErrDisabled, a.Name)
		}
		out = append(out, a.Clone())
	}
	return out, nil
}
