// Package metrics exposes the relay's Prometheus collectors.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	obserrors "github.com/target/jobrelay/internal/observability/errors"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Recorder owns the relay's collectors. A nil *Recorder is valid and records nothing,
// so services can take one as an optional dependency.
type Recorder struct {
	submissions     *prometheus.CounterVec
	lookups         *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	providerTokens  *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	reaped          *prometheus.CounterVec
	reaperRuns      *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New builds a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	ns := strings.TrimSpace(namespace)
	r := &Recorder{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "jobs_submitted_total",
			Help:      "Jobs accepted onto a queue, by queue and kind.",
		}, []string{"queue", "kind", "result"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "job_status_lookups_total",
			Help:      "Job status lookups by the source that answered (cache, queue, miss).",
		}, []string{"source"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "callbacks_total",
			Help:      "Worker callbacks by reported status and outcome.",
		}, []string{"status", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "completion_transitions_total",
			Help:      "Completion record transitions applied by the worker.",
		}, []string{"transition", "result", "error_class"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "completion_job_duration_seconds",
			Help:      "Time spent processing one completion job.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"result"}),
		providerTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "provider_tokens_total",
			Help:      "Tokens reported by AI providers, by kind (prompt, response).",
		}, []string{"provider", "model", "kind"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "provider_call_duration_seconds",
			Help:      "AI provider call latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"provider", "success"}),
		reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reaper_items_total",
			Help:      "Records and queue jobs cleaned by the reaper, by step.",
		}, []string{"step"}),
		reaperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reaper_runs_total",
			Help:      "Reaper cleanup runs by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(
			r.submissions, r.lookups, r.callbacks,
			r.transitions, r.jobDuration,
			r.providerTokens, r.providerLatency,
			r.reaped, r.reaperRuns,
			r.httpRequests, r.httpDuration,
		)
	}
	return r
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Submitted counts an enqueue attempt.
func (r *Recorder) Submitted(queue, kind string, err error) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(queue, kind, resultOf(err)).Inc()
}

// Lookup counts a status lookup answered by source ("cache", "queue" or "miss").
func (r *Recorder) Lookup(source string) {
	if r == nil {
		return
	}
	r.lookups.WithLabelValues(source).Inc()
}

// Callback counts an ingested or rejected callback.
func (r *Recorder) Callback(status string, err error) {
	if r == nil {
		return
	}
	r.callbacks.WithLabelValues(norm(status), resultOf(err)).Inc()
}

// JobMetric captures one completion lifecycle event.
type JobMetric struct {
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// JobLifecycle records a completion transition and, when Duration is set, the job latency.
func (r *Recorder) JobLifecycle(in JobMetric) {
	if r == nil {
		return
	}
	class := ""
	if in.Err != nil && in.Result == ResultError {
		class = obserrors.Classify(in.Err)
	}
	r.transitions.WithLabelValues(in.Transition, in.Result, class).Inc()
	if in.Duration > 0 {
		r.jobDuration.WithLabelValues(in.Result).Observe(in.Duration.Seconds())
	}
}

// ProviderCall records latency and token usage of one provider call.
func (r *Recorder) ProviderCall(provider, model string, promptTokens, responseTokens int, d time.Duration, success bool) {
	if r == nil {
		return
	}
	p, m := norm(provider), norm(model)
	r.providerLatency.WithLabelValues(p, strconv.FormatBool(success)).Observe(d.Seconds())
	if promptTokens > 0 {
		r.providerTokens.WithLabelValues(p, m, "prompt").Add(float64(promptTokens))
	}
	if responseTokens > 0 {
		r.providerTokens.WithLabelValues(p, m, "response").Add(float64(responseTokens))
	}
}

// Reaped adds n cleaned items to step.
func (r *Recorder) Reaped(step string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.reaped.WithLabelValues(step).Add(float64(n))
}

// ReaperRun counts one cleanup pass.
func (r *Recorder) ReaperRun(err error) {
	if r == nil {
		return
	}
	r.reaperRuns.WithLabelValues(resultOf(err)).Inc()
}

// HTTPRequest records one served request. route is the matched ServeMux pattern.
func (r *Recorder) HTTPRequest(method, route string, code int, d time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}
