package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/bootstrap"
)

type connectInfraOptions struct {
	Logger    *slog.Logger
	Config    *config.AppConfig
	WantDB    bool
	WantRedis bool
}

// connectInfra wires up infrastructure dependencies based on CLI options.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectInfra(opts *connectInfraOptions) (*sql.DB, redis.UniversalClient, error) {
	var (
		db          *sql.DB
		redisClient redis.UniversalClient
		err         error
	)

	if opts.WantDB {
		db, err = bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: opts.Config.Postgres, Logger: opts.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
	}

	if opts.WantRedis {
		redisClient, err = bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: opts.Config.Redis, Logger: opts.Logger})
		if err != nil {
			err = fmt.Errorf("connect redis: %w", err)
			if db != nil {
				if closeErr := db.Close(); closeErr != nil {
					err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
				}
			}
			return nil, nil, err
		}
	}

	return db, redisClient, nil
}

func closeInfra(db *sql.DB, redisClient redis.UniversalClient) error {
	var closeErr error
	if db != nil {
		if err := db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// withServices connects the requested infrastructure, builds the service
// container on top of it and tears everything down after fn returns.
func withServices(cmdCtx *commandContext, opts connectInfraOptions, fn func(bootstrap.ServiceContainer) error) (err error) {
	opts.Logger = cmdCtx.Logger
	opts.Config = &cmdCtx.Config
	db, redisClient, err := connectInfra(&opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, redisClient); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		DB:          db,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	}))
}
