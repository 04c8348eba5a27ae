package realtime

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// New builds the Transport named by cfg.Kind.
// db and dbURL are only used by the postgres transport.
func New(cfg Config, db *sql.DB, dbURL string, logger *slog.Logger) (Transport, error) {
	switch cfg.Kind {
	case KindMemory, "":
		return NewHub(cfg.Buffer, logger), nil
	case KindRedis:
		r, err := NewRedis(cfg.RedisURL, cfg.Buffer, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case KindPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres transport requires a database connection")
		}
		return NewPostgres(db, dbURL, cfg.Buffer, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, cfg.Kind)
	}
}
