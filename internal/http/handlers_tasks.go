package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/target/jobrelay/internal/domain/model"
	apperrors "github.com/target/jobrelay/internal/errors"
	"github.com/target/jobrelay/internal/service"
)

// TaskHandlers provides HTTP handlers for generic tasks and worker callbacks.
type TaskHandlers struct {
	Submissions *service.SubmissionService
	Resolver    *service.ResolverService
	Callbacks   *service.CallbackService
	// Queue is the task queue that status lookups fall back to.
	Queue  string
	Logger *slog.Logger
}

// Create handles POST /api/tasks.
func (h *TaskHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateTaskRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Submissions.SubmitTask(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// Status handles GET /api/tasks/{jobId}. The optional query parameter is a
// JMESPath expression applied to the result (cache) or data (queue).
func (h *TaskHandlers) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.Resolver.Resolve(r.Context(), h.Queue, r.PathValue("jobId"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	if expr := r.URL.Query().Get("query"); expr != "" {
		view, err = service.Project(view, expr)
		if err != nil {
			writeServiceError(w, r, h.Logger, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, view)
}

// Callback handles POST /api/tasks/callback. When callback auth is enabled the
// token subject must name the job being reported.
func (h *TaskHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	var req model.CallbackRequest
	if !DecodeJSONLenient(w, r, &req) {
		return
	}

	if sub, ok := CallbackSubjectFromContext(r.Context()); ok && sub != strings.TrimSpace(req.JobID) {
		writeServiceError(w, r, h.Logger, apperrors.Unauthorized("callback token was not issued for this job"))
		return
	}

	if err := h.Callbacks.Ingest(r.Context(), &req); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, model.CallbackResponse{Success: true})
}
