package realtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
)

// Redis is a Transport backed by Redis PUBLISH/SUBSCRIBE.
type Redis struct {
	client *redis.Client
	buffer int
	logger *slog.Logger
}

// NewRedis parses url and creates the client. The connection is verified in Start.
func NewRedis(url string, buffer int, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if buffer <= 0 {
		buffer = 64
	}

	return &Redis{
		client: redis.NewClient(opts),
		buffer: buffer,
		logger: logger.With("system", "realtime", "transport", KindRedis),
	}, nil
}

func (r *Redis) Start(lc *lifecycle.Coordinator) error {
	if err := r.client.Ping(lc.Context()).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	r.logger.Info("redis transport connected")

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := r.client.Close(); err != nil {
			r.logger.Error("redis close failed", "error", err)
		}
	})
	return nil
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe waits for the subscription confirmation before returning.
// The go-redis client reconnects internally; the stream only fails when
// the pubsub channel is closed underneath it.
func (r *Redis) Subscribe(ctx context.Context, topic string) (Stream, error) {
	pubsub := r.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	s := newStream(r.buffer, func() { pubsub.Close() })

	go func() {
		for msg := range pubsub.Channel() {
			if !s.deliver([]byte(msg.Payload)) {
				r.logger.Warn("subscriber buffer full, payload dropped", "topic", topic)
			}
		}
		s.fail(ErrClosed)
	}()

	return s, nil
}
