package config

import (
	"github.com/JaimeStill/agent-chat/internal/realtime"
	"github.com/JaimeStill/agent-chat/pkg/database"
	"github.com/JaimeStill/agent-chat/pkg/logging"
)

var databaseEnv = &database.Env{
	Host:            "DATABASE_HOST",
	Port:            "DATABASE_PORT",
	Name:            "DATABASE_NAME",
	User:            "DATABASE_USER",
	Password:        "DATABASE_PASSWORD",
	MaxOpenConns:    "DATABASE_MAX_OPEN_CONNS",
	MaxIdleConns:    "DATABASE_MAX_IDLE_CONNS",
	ConnMaxLifetime: "DATABASE_CONN_MAX_LIFETIME",
	ConnTimeout:     "DATABASE_CONN_TIMEOUT",
	SSLMode:         "DATABASE_SSL_MODE",
}

var loggingEnv = &logging.Env{
	Level:  "LOGGING_LEVEL",
	Format: "LOGGING_FORMAT",
}

var realtimeEnv = &realtime.Env{
	Kind:       "REALTIME_KIND",
	RedisURL:   "REALTIME_REDIS_URL",
	Buffer:     "REALTIME_BUFFER",
	MaxPayload: "REALTIME_MAX_PAYLOAD",
}
