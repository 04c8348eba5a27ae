// Package database opens and manages the PostgreSQL connection pool.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/agent-chat/pkg/lifecycle"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// System exposes the shared connection pool and registers its lifecycle hooks.
type System interface {
	Connection() *sql.DB
	Dsn() string
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	dsn         string
	connTimeout time.Duration
	logger      *slog.Logger
}

// New opens the pool without connecting; Start verifies connectivity.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	conn, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        conn,
		dsn:         cfg.URL(),
		connTimeout: cfg.ConnTimeoutDuration(),
		logger:      logger.With("system", "database"),
	}, nil
}

func (d *database) Connection() *sql.DB { return d.conn }

func (d *database) Dsn() string { return d.dsn }

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	pingCtx, cancel := context.WithTimeout(lc.Context(), d.connTimeout)
	defer cancel()

	if err := d.conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	d.logger.Info("database connection established")

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("closing database connection")

		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}
