package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/target/jobrelay/config"
	httpx "github.com/target/jobrelay/internal/http"
	"golang.org/x/net/netutil"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the serve error if the listener fails after startup.
	ErrCh chan<- error
}

// BuildRouterServices maps the service container onto the router's dependencies.
func BuildRouterServices(appCfg *config.AppConfig, svcs ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Submissions: svcs.Submissions,
		Completions: svcs.Completions,
		Resolver:    svcs.Resolver,
		Callbacks:   svcs.Callbacks,
		TaskQueue:   appCfg.Queue.TaskQueue,
		CallbackAuth: httpx.CallbackAuthConfig{
			Secret: []byte(appCfg.Callback.SigningSecret),
			Leeway: appCfg.Callback.Leeway,
		},
		Health:       svcs.Health,
		MaxBodyBytes: appCfg.HTTP.MaxBodyBytes,
		Metrics:      svcs.Observability.Metrics,
		MetricsPath:  svcs.Observability.MetricsConfig.Path,
		Logger:       logger,
	}
	if svcs.Observability.Registry != nil {
		rs.Gatherer = svcs.Observability.Registry
	}
	return rs
}

// StartHTTPServer binds the listener and serves in the background.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	if !appCfg.Callback.Enabled() {
		logger.Warn("CALLBACK_SIGNING_SECRET is empty; task callbacks are accepted without authentication")
	}

	handler := httpx.NewRouter(BuildRouterServices(appCfg, cfg.Services, logger))

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":3000"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: appCfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       appCfg.HTTP.ReadTimeout,
		WriteTimeout:      appCfg.HTTP.WriteTimeout,
		IdleTimeout:       appCfg.HTTP.IdleTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if appCfg.HTTP.MaxConns > 0 {
		ln = netutil.LimitListener(ln, appCfg.HTTP.MaxConns)
	}

	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_conns", appCfg.HTTP.MaxConns)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
			if cfg.ErrCh != nil {
				select {
				case cfg.ErrCh <- fmt.Errorf("http server: %w", serveErr):
				default:
				}
			}
		}
	}()

	return server, nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
