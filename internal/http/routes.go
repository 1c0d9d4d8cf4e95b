package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/target/jobrelay/internal/observability/metrics"
	"github.com/target/jobrelay/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Submissions *service.SubmissionService
	Completions *service.CompletionService
	Resolver    *service.ResolverService
	Callbacks   *service.CallbackService
	// TaskQueue is the queue GET /api/tasks/{jobId} falls back to.
	TaskQueue string

	CallbackAuth CallbackAuthConfig
	Health       map[string]HealthCheck
	MaxBodyBytes int64

	// Optional: Prometheus exposition. MetricsPath defaults to /metrics.
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Metrics     *metrics.Recorder

	Logger *slog.Logger // Logger for request and error logging (optional)
}

// NewRouter creates and configures the HTTP router with its middleware chain.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	completionHandlers := &CompletionHandlers{
		Submissions: services.Submissions,
		Svc:         services.Completions,
		Logger:      services.Logger,
	}
	taskHandlers := &TaskHandlers{
		Submissions: services.Submissions,
		Resolver:    services.Resolver,
		Callbacks:   services.Callbacks,
		Queue:       services.TaskQueue,
		Logger:      services.Logger,
	}

	registerCompletionRoutes(mux, completionHandlers)
	registerTaskRoutes(mux, taskHandlers, services.CallbackAuth)

	health := &HealthHandler{Checks: services.Health}
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)

	if services.Gatherer != nil {
		path := strings.TrimSpace(services.MetricsPath)
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(services.Gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = Logging(services.Logger, services.Metrics)(handler)
	handler = LimitBody(services.MaxBodyBytes)(handler)
	handler = RequestID()(handler)
	return Recover(services.Logger)(handler)
}

func registerCompletionRoutes(mux *http.ServeMux, h *CompletionHandlers) {
	mux.HandleFunc("POST /api/completions", h.Create)
	mux.HandleFunc("GET /api/completions", h.List)
	mux.HandleFunc("GET /api/completions/{id}", h.Get)
	mux.HandleFunc("GET /api/completions/{id}/status", h.Status)
}

func registerTaskRoutes(mux *http.ServeMux, h *TaskHandlers, auth CallbackAuthConfig) {
	mux.HandleFunc("POST /api/tasks", h.Create)
	mux.HandleFunc("GET /api/tasks/{jobId}", h.Status)
	mux.Handle("POST /api/tasks/callback", CallbackAuth(auth)(http.HandlerFunc(h.Callback)))
}
