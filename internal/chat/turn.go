package chat

import (
	"context"
	"sync"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/pipeline"
	"github.com/google/uuid"
)

// Turn tracks one user message and the pipeline run it triggered.
type Turn struct {
	ID             string           `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	UserMessage    messages.Message `json:"user_message"`
	AgentIDs       []uuid.UUID      `json:"agent_ids"`

	agents []agents.Agent
	text   string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result pipeline.Result
	err    error
}

func newTurn(user messages.Message, snapshot []agents.Agent, text string) *Turn {
	ids := make([]uuid.UUID, len(snapshot))
	for i, a := range snapshot {
		ids[i] = a.ID
	}
	return &Turn{
		ID:             uuid.NewString(),
		ConversationID: user.ConversationID,
		UserMessage:    user,
		AgentIDs:       ids,
		agents:         snapshot,
		text:           text,
		done:           make(chan struct{}),
	}
}

// Done closes when the run has finished, failed, or been cancelled.
func (t *Turn) Done() <-chan struct{} {
	return t.done
}

// Result reports the run outcome. It is meaningful after Done closes.
func (t *Turn) Result() (pipeline.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

func (t *Turn) finish(result pipeline.Result, err error) {
	t.mu.Lock()
	t.result = result
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
