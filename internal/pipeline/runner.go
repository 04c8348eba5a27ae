package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/agent-chat/internal/agents"
	"github.com/JaimeStill/agent-chat/internal/messages"
	"github.com/JaimeStill/agent-chat/internal/metrics"
	"github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
	"github.com/google/uuid"
)

const contextKey = "execution_context"

// Turn is one pipeline run over a user message. Agents are value snapshots
// taken when the run started.
type Turn struct {
	ID             string
	ConversationID uuid.UUID
	UserMessageID  string
	Text           string
	Agents         []agents.Agent
}

// Result summarizes a finished run.
type Result struct {
	Context ExecutionContext
	Emitted int
	Failed  int
}

// Emitter receives each agent message as it is produced. Calls are made
// from the run's goroutine in production order.
type Emitter func(messages.Message)

// Runner executes turns as a linear state graph with one node per agent.
type Runner struct {
	invoker     Invoker
	stepTimeout time.Duration
	checkpoints state.CheckpointStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner creates a Runner. A nil checkpoint store defaults to an
// in-memory store.
func NewRunner(invoker Invoker, stepTimeout time.Duration, checkpoints state.CheckpointStore, logger *slog.Logger) *Runner {
	if checkpoints == nil {
		checkpoints = NewMemoryCheckpointStore()
	}
	return &Runner{
		invoker:     invoker,
		stepTimeout: stepTimeout,
		checkpoints: checkpoints,
		logger:      logger.With("system", "pipeline"),
		now:         time.Now,
	}
}

// Run invokes each agent of turn in order. A failed step emits one error
// message and leaves its context entry absent; later steps still run.
// Cancelling ctx stops the run before the next step and returns
// ErrCancelled; nothing further is emitted.
func (r *Runner) Run(ctx context.Context, turn Turn, emit Emitter) (Result, error) {
	if len(turn.Agents) == 0 {
		return Result{}, ErrNoAgents
	}

	metrics.TurnsStarted.Inc()
	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	logger := r.logger.With("turn_id", turn.ID, "conversation_id", turn.ConversationID)
	run := &runState{turn: turn, emit: emit, now: r.now}

	cfg := config.DefaultGraphConfig("turn")
	cfg.Checkpoint.Interval = 1
	cfg.Checkpoint.Preserve = false

	graph, err := state.NewGraphWithDeps(cfg, NewObserver(logger), r.checkpoints)
	if err != nil {
		return Result{}, fmt.Errorf("create graph: %w", err)
	}

	var prev string
	for i, agent := range turn.Agents {
		name := fmt.Sprintf("step-%d", i)
		node := state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
			return r.step(ctx, run, agent, s, logger)
		})

		if err := graph.AddNode(name, node); err != nil {
			return Result{}, fmt.Errorf("add %s: %w", name, err)
		}
		if prev != "" {
			if err := graph.AddEdge(prev, name, nil); err != nil {
				return Result{}, fmt.Errorf("link %s: %w", name, err)
			}
		} else if err := graph.SetEntryPoint(name); err != nil {
			return Result{}, err
		}
		prev = name
	}
	if err := graph.SetExitPoint(prev); err != nil {
		return Result{}, err
	}

	initial := state.New(nil).Set(contextKey, ExecutionContext{})
	initial.RunID = turn.ID

	final, err := graph.Execute(ctx, initial)
	result := Result{Context: run.context(final), Emitted: run.emitted, Failed: run.failed}

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("turn cancelled", "emitted", run.emitted)
			return result, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return result, fmt.Errorf("execute turn: %w", err)
	}

	logger.Info("turn completed", "agents", len(turn.Agents), "failed", run.failed)
	return result, nil
}

func (r *Runner) step(ctx context.Context, run *runState, agent agents.Agent, s state.State, logger *slog.Logger) (state.State, error) {
	if err := ctx.Err(); err != nil {
		return s, err
	}

	prior := contextFrom(s)

	stepCtx, cancel := context.WithTimeout(ctx, r.stepTimeout)
	start := time.Now()
	resp, err := r.invoker.Invoke(stepCtx, agent, run.turn.Text, prior)
	timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
	cancel()

	var rich *messages.RichContent
	if err == nil {
		rich, err = messages.ParseRich(resp.Type, resp.Data, resp.Summary)
		if err != nil {
			err = fmt.Errorf("%w: %v", agents.ErrMalformed, err)
		}
	}

	metrics.AgentStepDuration.WithLabelValues(agent.Name).Observe(time.Since(start).Seconds())

	if err != nil && ctx.Err() != nil {
		metrics.AgentSteps.WithLabelValues(agent.Name, metrics.OutcomeCancelled).Inc()
		return s, ctx.Err()
	}

	if err != nil {
		outcome, text := classify(agent, err, timedOut, r.stepTimeout)
		metrics.AgentSteps.WithLabelValues(agent.Name, outcome).Inc()
		logger.Warn("agent step failed", "agent", agent.Name, "outcome", outcome, "error", err)

		run.failed++
		run.publish(agent, text, messages.NewText(text, text), true)
		return s, nil
	}

	metrics.AgentSteps.WithLabelValues(agent.Name, metrics.OutcomeSuccess).Inc()

	next := prior.With(Output{
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Type:      rich.Type,
		Data:      rich.Data(),
		Summary:   rich.Summary,
	})
	content := rich.Summary
	if content == "" && rich.Text != nil {
		content = rich.Text.Text
	}
	run.publish(agent, content, rich, false)

	return s.Set(contextKey, next), nil
}

func classify(agent agents.Agent, err error, timedOut bool, timeout time.Duration) (string, string) {
	switch {
	case timedOut:
		return metrics.OutcomeTimeout, fmt.Sprintf("%s did not respond within %s.", agent.Name, timeout)
	case errors.Is(err, agents.ErrMalformed):
		return metrics.OutcomeMalformed, fmt.Sprintf("%s returned a response that could not be read.", agent.Name)
	default:
		return metrics.OutcomeError, fmt.Sprintf("%s failed: %v", agent.Name, err)
	}
}

func contextFrom(s state.State) ExecutionContext {
	if v, ok := s.Get(contextKey); ok {
		if c, ok := v.(ExecutionContext); ok {
			return c
		}
	}
	return ExecutionContext{}
}

// runState is owned by the graph's single execution goroutine.
type runState struct {
	turn    Turn
	emit    Emitter
	now     func() time.Time
	last    time.Time
	emitted int
	failed  int
}

// publish emits an agent message stamped strictly after the previous one,
// so production order survives timestamp ordering.
func (r *runState) publish(agent agents.Agent, content string, rich *messages.RichContent, isError bool) {
	at := r.now().UTC().Truncate(time.Microsecond)
	if !at.After(r.last) {
		at = r.last.Add(time.Microsecond)
	}
	r.last = at

	agentID := agent.ID
	turnID := r.turn.ID
	replyTo := r.turn.UserMessageID

	msg := messages.Message{
		ID:             messages.NewID(),
		ConversationID: r.turn.ConversationID,
		Author:         messages.AuthorAgent,
		AgentID:        &agentID,
		Content:        content,
		Rich:           rich,
		CreatedAt:      at,
		TurnID:         &turnID,
		IsError:        isError,
	}
	if replyTo != "" {
		msg.ReplyTo = &replyTo
	}

	r.emitted++
	if r.emit != nil {
		r.emit(msg)
	}
}

func (r *runState) context(s state.State) ExecutionContext {
	return contextFrom(s)
}
