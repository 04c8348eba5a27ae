package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/agent-chat/internal/agents"
)

// Invoker calls one agent. prior holds only the outputs of agents earlier
// in the same turn.
type Invoker interface {
	Invoke(ctx context.Context, agent agents.Agent, userText string, prior ExecutionContext) (*agents.Response, error)
}

// Prompter executes an agent against a rendered prompt.
type Prompter interface {
	Invoke(ctx context.Context, agent agents.Agent, prompt string) (*agents.Response, error)
}

// ChatInvoker renders the user text and prior outputs into a single prompt
// and hands it to a Prompter. When budget is non-nil the prior section is
// trimmed to fit, dropping the earliest outputs first and noting how many
// were dropped.
type ChatInvoker struct {
	prompter Prompter
	budget   *Budget
}

func NewChatInvoker(prompter Prompter, budget *Budget) *ChatInvoker {
	return &ChatInvoker{prompter: prompter, budget: budget}
}

func (c *ChatInvoker) Invoke(ctx context.Context, agent agents.Agent, userText string, prior ExecutionContext) (*agents.Response, error) {
	return c.prompter.Invoke(ctx, agent, RenderPrompt(userText, prior, c.budget))
}

const responseInstructions = `Respond with a single JSON object: {"type": "table|chart|cards|list|timeline|text", "data": {...}, "summary": "..."}.`

// RenderPrompt builds the agent input for one step.
func RenderPrompt(userText string, prior ExecutionContext, budget *Budget) string {
	var b strings.Builder

	b.WriteString("User message:\n")
	b.WriteString(userText)
	b.WriteString("\n")

	sections := make([]string, 0, prior.Len())
	for _, o := range prior.Entries() {
		data, err := json.Marshal(o.Data)
		if err != nil {
			data = []byte("null")
		}
		sections = append(sections, fmt.Sprintf("[%s] %s (%s)\n%s", o.AgentName, o.Summary, o.Type, data))
	}

	omitted := 0
	if budget != nil {
		kept := budget.Fit(sections)
		omitted = len(sections) - len(kept)
		sections = kept
	}

	if len(sections) > 0 || omitted > 0 {
		b.WriteString("\nOutputs from earlier agents in this turn:\n")
		if omitted > 0 {
			fmt.Fprintf(&b, "(%d earlier outputs omitted to fit the context budget)\n", omitted)
		}
		b.WriteString(strings.Join(sections, "\n\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(responseInstructions)
	return b.String()
}
