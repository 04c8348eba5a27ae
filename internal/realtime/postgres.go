package realtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	"github.com/jackc/pgx/v5"
)

// MaxNotifyPayload is the largest payload PostgreSQL NOTIFY accepts.
const MaxNotifyPayload = 7999

// Postgres is a Transport backed by LISTEN/NOTIFY.
// Each subscription holds a dedicated connection; publishing uses the shared pool.
type Postgres struct {
	db     *sql.DB
	url    string
	buffer int
	logger *slog.Logger
}

// NewPostgres creates a LISTEN/NOTIFY transport. url must be a postgres:// URL.
func NewPostgres(db *sql.DB, url string, buffer int, logger *slog.Logger) *Postgres {
	if buffer <= 0 {
		buffer = 64
	}
	return &Postgres{
		db:     db,
		url:    url,
		buffer: buffer,
		logger: logger.With("system", "realtime", "transport", KindPostgres),
	}
}

func (p *Postgres) Start(lc *lifecycle.Coordinator) error {
	return nil
}

func (p *Postgres) Publish(ctx context.Context, topic string, payload []byte) error {
	if len(payload) > MaxNotifyPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if _, err := p.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", topic, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w", topic, err)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, topic string) (Stream, error) {
	conn, err := pgx.Connect(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{topic}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", topic, err)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := newStream(p.buffer, cancel)

	go func() {
		defer conn.Close(context.Background())

		for {
			n, err := conn.WaitForNotification(listenCtx)
			if err != nil {
				if errors.Is(listenCtx.Err(), context.Canceled) {
					return
				}
				p.logger.Warn("listener connection lost", "topic", topic, "error", err)
				s.fail(err)
				return
			}
			if !s.deliver([]byte(n.Payload)) {
				p.logger.Warn("subscriber buffer full, payload dropped", "topic", topic)
			}
		}
	}()

	return s, nil
}
