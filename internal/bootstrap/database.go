package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/data"
	"github.com/target/jobrelay/internal/migrate"
)

// connectTimeout bounds the startup ping against Postgres and Redis.
const connectTimeout = 5 * time.Second

// Completion records are written by the HTTP tier and the completion worker
// at the same time, so the pool stays small and recycles connections.
const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute
)

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens the completion store and verifies it answers a ping.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConfig.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if pingErr := pingOrClose("database", db.PingContext, db.Close); pingErr != nil {
		return nil, pingErr
	}

	if cfg.Logger != nil {
		host, name := postgresTarget(cfg.DBConfig)
		cfg.Logger.Info("completion store connected", "host", host, "database", name)
	}
	return db, nil
}

// ConnectRedis builds the queue backend client and verifies it answers a ping.
//
//nolint:ireturn // sentinel and cluster deployments need a different concrete client.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, target, err := redisUniversalOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if pingErr := pingOrClose("redis", ping, client.Close); pingErr != nil {
		return nil, pingErr
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("queue backend connected", "target", target)
	}
	return client, nil
}

// pingOrClose pings a freshly opened connection and closes it when the ping fails.
func pingOrClose(name string, ping func(context.Context) error, closeFn func() error) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pingErr := ping(ctx)
	if pingErr == nil {
		return nil
	}
	if closeErr := closeFn(); closeErr != nil {
		pingErr = errors.Join(pingErr, fmt.Errorf("close %s connection: %w", name, closeErr))
	}
	return fmt.Errorf("ping %s: %w", name, pingErr)
}

// postgresTarget returns the host and database name for logging, never credentials.
func postgresTarget(cfg config.DBConfig) (string, string) {
	if cfg.URL == "" {
		return cfg.Host, cfg.Name
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return "", ""
	}
	return u.Host, strings.TrimPrefix(u.Path, "/")
}

// MigrationStatus reports which embedded migrations have been applied.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]migrate.Migration, error) {
	return migrate.Status(ctx, db)
}

// RunMigrations applies the completions schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := data.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.InfoContext(ctx, "completion schema up to date")
	}
	return nil
}
