package pipeline

import "errors"

var (
	ErrCancelled = errors.New("pipeline run cancelled")
	ErrNoAgents  = errors.New("pipeline requires at least one agent")
)
