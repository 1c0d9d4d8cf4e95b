package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/adapters/provider"
	"github.com/target/jobrelay/internal/adapters/reaper"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/observability/metrics"
	"github.com/target/jobrelay/internal/service"
)

// CompletionWorkerConfig contains the dependencies for the completion worker.
type CompletionWorkerConfig struct {
	Queue    core.QueueWorker
	Records  core.CompletionTransitioner
	Locks    core.CacheRepository
	Provider config.ProviderConfig
	Worker   service.CompletionWorkerConfig
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

// RunCompletionWorker builds the configured AI provider and runs the worker until ctx is cancelled.
func RunCompletionWorker(ctx context.Context, cfg CompletionWorkerConfig) error {
	if cfg.Queue == nil || cfg.Records == nil {
		return errors.New("completion worker requires a queue and a record store")
	}

	p, err := provider.New(ctx, cfg.Provider)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	worker, err := service.NewCompletionWorker(service.CompletionWorkerOptions{
		Queue:    cfg.Queue,
		Records:  cfg.Records,
		Provider: p,
		Locks:    cfg.Locks,
		Config:   cfg.Worker,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create completion worker: %w", err)
	}

	return worker.Run(ctx)
}

// ReaperConfig contains the dependencies for the reaper service.
type ReaperConfig struct {
	DB      *sql.DB
	Repo    core.ReaperRepository
	Janitor core.QueueJanitor
	Queues  []string
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics *metrics.Recorder
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Repo:    cfg.Repo,
		Janitor: cfg.Janitor,
		Config:  cfg.Config,
		Queues:  cfg.Queues,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
