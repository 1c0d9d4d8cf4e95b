package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/jobrelay/config"
	"github.com/target/jobrelay/internal/data"
	"github.com/target/jobrelay/internal/mocks"
	"github.com/target/jobrelay/internal/service"
	"go.uber.org/mock/gomock"
)

// apiFixture wires the real services over mocked ports behind the full router.
type apiFixture struct {
	repo    *mocks.MockCompletionRepository
	queue   *mocks.MockQueueClient
	cache   *data.MemoryResultCache
	handler http.Handler
}

type fixtureOption func(*RouterServices)

func withCallbackSecret(secret string) fixtureOption {
	return func(s *RouterServices) {
		s.CallbackAuth = CallbackAuthConfig{Secret: []byte(secret), Leeway: time.Second}
	}
}

func withHealth(checks map[string]HealthCheck) fixtureOption {
	return func(s *RouterServices) { s.Health = checks }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &apiFixture{
		repo:  mocks.NewMockCompletionRepository(ctrl),
		queue: mocks.NewMockQueueClient(ctrl),
		cache: data.NewMemoryResultCache(data.MemoryResultCacheOptions{Capacity: 100, TTL: time.Hour}),
	}

	queueCfg := config.QueueConfig{DefaultAttempts: 3, BackoffDelay: 2 * time.Second}
	queueCfg.Sanitize()

	resolver := service.MustNewResolverService(service.ResolverServiceOptions{Cache: f.cache, Queue: f.queue})
	services := RouterServices{
		Submissions: service.MustNewSubmissionService(service.SubmissionServiceOptions{
			Repo:   f.repo,
			Queue:  f.queue,
			Config: queueCfg,
			NewID:  func() string { return "completion_01HZX0000000000000000000AA" },
		}),
		Completions: service.MustNewCompletionService(service.CompletionServiceOptions{
			Repo:     f.repo,
			Resolver: resolver,
			Config: service.CompletionQueryConfig{
				Queue:  queueCfg.CompletionQueue,
				Paging: config.CompletionsConfig{DefaultPageSize: 50, MaxPageSize: 100},
			},
		}),
		Resolver:     resolver,
		Callbacks:    service.MustNewCallbackService(service.CallbackServiceOptions{Cache: f.cache}),
		TaskQueue:    queueCfg.TaskQueue,
		MaxBodyBytes: 1 << 10,
	}
	for _, opt := range opts {
		opt(&services)
	}
	f.handler = NewRouter(services)
	return f
}

func (f *apiFixture) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
