package httpx

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck pings one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports readiness. With no checks it always answers 200.
type HealthHandler struct {
	Checks  map[string]HealthCheck
	Timeout time.Duration
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP runs every check concurrently under a shared deadline and answers
// 503 when any of them fails.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results := h.run(r.Context())

	resp := healthResponse{Status: "ok"}
	code := http.StatusOK
	if len(results) > 0 {
		resp.Checks = results
	}
	for _, v := range results {
		if v != "ok" {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			break
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}

func (h *HealthHandler) run(ctx context.Context) map[string]string {
	if len(h.Checks) == 0 {
		return nil
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(names))
		g       errgroup.Group
	)
	for _, name := range names {
		check := h.Checks[name]
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = "error"
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
