package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/core"
	"github.com/target/jobrelay/internal/data"
	"github.com/target/jobrelay/internal/data/queue"
	httpx "github.com/target/jobrelay/internal/http"
	"github.com/target/jobrelay/internal/observability/metrics"
	"github.com/target/jobrelay/internal/service"
)

// lockKeyPrefix namespaces the completion worker's per-record leases in Redis.
const lockKeyPrefix = "jobrelay:lock:"

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Submissions   *service.SubmissionService
	Completions   *service.CompletionService
	Resolver      *service.ResolverService
	Callbacks     *service.CallbackService
	Queues        *queue.Registry
	Records       *data.CompletionRepo
	Results       core.ResultCache
	Locks         core.CacheRepository
	Health        map[string]httpx.HealthCheck
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Registry is nil when metrics are disabled.
	Registry      *prometheus.Registry
	Metrics       *metrics.Recorder
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// buildObservability configures the Prometheus registry and recorder.
func buildObservability(cfg config.ObservabilityConfig) ObservabilityContainer {
	if !cfg.Metrics.Enabled {
		return ObservabilityContainer{MetricsConfig: cfg.Metrics}
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return ObservabilityContainer{
		Registry:      reg,
		Metrics:       metrics.New(reg, cfg.Metrics.Namespace),
		MetricsConfig: cfg.Metrics,
	}
}

// buildResultCache selects the callback result cache backend.
//
//nolint:ireturn // the backend is chosen at runtime.
func buildResultCache(cfg config.ResultCacheConfig, client redis.UniversalClient, logger *slog.Logger) core.ResultCache {
	if cfg.Backend == config.ResultCacheRedis && client != nil {
		logger.Info("result cache backend", "backend", "redis", "ttl", cfg.TTL)
		return data.NewRedisResultCache(data.NewRedisCacheRepo(client, cfg.KeyPrefix), cfg.TTL)
	}
	logger.Info("result cache backend", "backend", "memory", "capacity", cfg.Capacity, "ttl", cfg.TTL)
	return data.NewMemoryResultCache(data.MemoryResultCacheOptions{
		Capacity: cfg.Capacity,
		TTL:      cfg.TTL,
	})
}

func buildHealthChecks(db *sql.DB, client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// NewServices builds every service from its dependencies. It panics on
// programmer errors such as a missing required dependency.
func NewServices(deps *ServiceDeps) ServiceContainer {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	obs := buildObservability(cfg.Observability)
	queues := queue.NewRegistry(deps.RedisClient, queue.Options{
		Prefix: cfg.Queue.Prefix,
		Logger: logger,
	})
	records := data.NewCompletionRepo(deps.DB, data.RepoConfig{
		Logger:       logger,
		DefaultLimit: cfg.Completions.DefaultPageSize,
		MaxLimit:     cfg.Completions.MaxPageSize,
	})
	results := buildResultCache(cfg.ResultCache, deps.RedisClient, logger)

	var locks core.CacheRepository
	if deps.RedisClient != nil {
		locks = data.NewRedisCacheRepo(deps.RedisClient, lockKeyPrefix)
	}

	resolver := service.MustNewResolverService(service.ResolverServiceOptions{
		Cache:   results,
		Queue:   queues,
		Logger:  logger,
		Metrics: obs.Metrics,
	})

	return ServiceContainer{
		Submissions: service.MustNewSubmissionService(service.SubmissionServiceOptions{
			Repo:    records,
			Queue:   queues,
			Config:  cfg.Queue,
			Logger:  logger,
			Metrics: obs.Metrics,
		}),
		Completions: service.MustNewCompletionService(service.CompletionServiceOptions{
			Repo:     records,
			Resolver: resolver,
			Config: service.CompletionQueryConfig{
				Queue:  cfg.Queue.CompletionQueue,
				Paging: cfg.Completions,
			},
			Logger: logger,
		}),
		Resolver: resolver,
		Callbacks: service.MustNewCallbackService(service.CallbackServiceOptions{
			Cache:   results,
			Logger:  logger,
			Metrics: obs.Metrics,
		}),
		Queues:        queues,
		Records:       records,
		Results:       results,
		Locks:         locks,
		Health:        buildHealthChecks(deps.DB, deps.RedisClient),
		Observability: obs,
	}
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newCompletionWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeCompletionWorker,
		name: "completion worker",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
				return nil
			}
			appCfg := deps.cfg.Config
			svcs := deps.cfg.Services
			return RunCompletionWorker(ctx, CompletionWorkerConfig{
				Queue:    svcs.Queues,
				Records:  svcs.Records,
				Locks:    svcs.Locks,
				Provider: appCfg.Provider,
				Worker: service.CompletionWorkerConfig{
					Queue:          appCfg.Queue.CompletionQueue,
					Concurrency:    appCfg.Worker.Concurrency,
					PollInterval:   appCfg.Worker.PollInterval,
					RequestTimeout: appCfg.Provider.RequestTimeout,
				},
				Logger:  deps.logger,
				Metrics: svcs.Observability.Metrics,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var (
				reaperCfg config.ReaperConfig
				queues    []string
			)
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
				queues = []string{deps.cfg.Config.Queue.CompletionQueue, deps.cfg.Config.Queue.TaskQueue}
			}
			return RunReaper(ctx, ReaperConfig{
				DB:      deps.cfg.DB,
				Repo:    deps.cfg.Services.Records,
				Janitor: deps.cfg.Services.Queues,
				Queues:  queues,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.Metrics,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newCompletionWorkerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) (ServiceStartupResult, error) {
	srv, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return ServiceStartupResult{}, err
	}
	return ServiceStartupResult{
		HTTPServer: srv,
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}, nil
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result, err := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})
	if err != nil {
		return err
	}

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		queues:      cfg.Services.Queues,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	queues      *queue.Registry
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops the HTTP server, waits for background services, then
// closes the queue registry they share.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// The service context is already cancelled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cfg.ctx), shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if cfg.queues != nil {
		if err := cfg.queues.Close(); err != nil {
			return fmt.Errorf("close queues: %w", err)
		}
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
