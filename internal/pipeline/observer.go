package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/decode"
	"github.com/JaimeStill/go-agents-orchestration/pkg/observability"
)

// NodeData is the subset of graph node event payloads the observer reads.
type NodeData struct {
	Node      string `json:"node"`
	Iteration int    `json:"iteration"`
	Error     bool   `json:"error"`
}

// Observer logs step boundaries and durations for a single run.
type Observer struct {
	logger     *slog.Logger
	mu         sync.Mutex
	startTimes map[string]time.Time
}

func NewObserver(logger *slog.Logger) *Observer {
	return &Observer{
		logger:     logger,
		startTimes: make(map[string]time.Time),
	}
}

func (o *Observer) OnEvent(ctx context.Context, event observability.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Type {
	case observability.EventNodeStart:
		data := o.nodeData(event)
		o.startTimes[data.key()] = event.Timestamp
		o.logger.Debug("step started", "node", data.Node)
	case observability.EventNodeComplete:
		data := o.nodeData(event)
		var elapsed time.Duration
		if start, ok := o.startTimes[data.key()]; ok {
			elapsed = event.Timestamp.Sub(start)
			delete(o.startTimes, data.key())
		}
		o.logger.Debug("step completed", "node", data.Node, "error", data.Error, "duration", elapsed)
	case observability.EventEdgeTransition:
		o.logger.Debug("step transition", "source", event.Source)
	}
}

func (o *Observer) nodeData(event observability.Event) NodeData {
	data, err := decode.FromMap[NodeData](event.Data)
	if err != nil || data.Node == "" {
		data.Node = event.Source
	}
	return data
}

func (d NodeData) key() string {
	return fmt.Sprintf("%s:%d", d.Node, d.Iteration)
}
