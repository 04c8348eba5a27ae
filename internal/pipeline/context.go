// Package pipeline runs a turn through an ordered chain of agents, handing
// each agent the outputs of the agents before it.
package pipeline

import (
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/google/uuid"
)

// Output is one agent's structured result within a turn.
type Output struct {
	AgentID   uuid.UUID            `json:"agent_id"`
	AgentName string               `json:"agent_name"`
	Type      messages.ContentType `json:"type"`
	Data      any                  `json:"data"`
	Summary   string               `json:"summary"`
}

// ExecutionContext maps agent id to output for one turn. It is immutable:
// With returns a new value and never changes the receiver. The zero value
// is empty and ready to use.
type ExecutionContext struct {
	entries map[uuid.UUID]Output
	order   []uuid.UUID
}

// With returns a copy of c with o added. An existing entry for the same
// agent is replaced in place.
func (c ExecutionContext) With(o Output) ExecutionContext {
	next := ExecutionContext{
		entries: make(map[uuid.UUID]Output, len(c.entries)+1),
		order:   make([]uuid.UUID, len(c.order), len(c.order)+1),
	}
	for k, v := range c.entries {
		next.entries[k] = v
	}
	copy(next.order, c.order)

	if _, ok := next.entries[o.AgentID]; !ok {
		next.order = append(next.order, o.AgentID)
	}
	next.entries[o.AgentID] = o
	return next
}

// Get returns the output recorded for agentID. A missing entry means the
// agent has not run or produced nothing usable.
func (c ExecutionContext) Get(agentID uuid.UUID) (Output, bool) {
	o, ok := c.entries[agentID]
	return o, ok
}

func (c ExecutionContext) Len() int {
	return len(c.order)
}

// Entries returns outputs in the order they were added.
func (c ExecutionContext) Entries() []Output {
	out := make([]Output, len(c.order))
	for i, id := range c.order {
		out[i] = c.entries[id]
	}
	return out
}
