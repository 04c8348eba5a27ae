// Package realtime carries change and presence payloads between processes.
//
// A Transport is a topic-addressed, at-most-once broadcast. Subscribers that
// fall behind lose payloads; consumers recover through idempotent
// reconciliation and catch-up reads against the persistence layer.
package realtime

import (
	"context"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
)

// Transport publishes payloads to topics and opens topic subscriptions.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe returns once the subscription is established.
	Subscribe(ctx context.Context, topic string) (Stream, error)

	Start(lc *lifecycle.Coordinator) error
}

// Stream delivers payloads for one topic subscription.
//
// C is closed when the stream ends. If the stream ended because the
// transport failed rather than through Close, Err reports the cause.
type Stream interface {
	C() <-chan []byte
	Err() error
	Close() error
}

// Kind names a Transport implementation in configuration.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
)
