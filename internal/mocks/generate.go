// Package mocks provides gomock implementations of the ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	queue := mocks.NewMockQueueClient(ctrl)
//	queue.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("1", nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=completion_repository_mock.go github.com/target/jobrelay/internal/core CompletionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=completion_transitioner_mock.go github.com/target/jobrelay/internal/core CompletionTransitioner
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/target/jobrelay/internal/core ReaperRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_client_mock.go github.com/target/jobrelay/internal/core QueueClient
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_worker_mock.go github.com/target/jobrelay/internal/core QueueWorker
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_inspector_mock.go github.com/target/jobrelay/internal/core QueueInspector
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_janitor_mock.go github.com/target/jobrelay/internal/core QueueJanitor
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/target/jobrelay/internal/core CacheRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_cache_mock.go github.com/target/jobrelay/internal/core ResultCache
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=completion_provider_mock.go github.com/target/jobrelay/internal/core CompletionProvider
