package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/target/jobrelay/internal/domain/model"
	"github.com/target/jobrelay/internal/http/validation"
	"github.com/target/jobrelay/internal/service"
)

// maxIDParamLen bounds id query parameters on completion lookups.
const maxIDParamLen = 200

//nolint:gochecknoglobals // read-only list of filterable statuses
var completionStatuses = []string{
	string(model.CompletionStatusPending),
	string(model.CompletionStatusProcessing),
	string(model.CompletionStatusCompleted),
	string(model.CompletionStatusFailed),
}

// CompletionHandlers provides HTTP handlers for completion submission and lookup.
type CompletionHandlers struct {
	Submissions *service.SubmissionService
	Svc         *service.CompletionService
	Logger      *slog.Logger
}

// Create handles POST /api/completions.
func (h *CompletionHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCompletionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	resp, err := h.Submissions.SubmitCompletion(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, resp)
}

// List handles GET /api/completions. A jobId or completionId query parameter
// selects the queue view of a single job; otherwise records are listed.
func (h *CompletionHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	jobID := strings.TrimSpace(q.Get("jobId"))
	completionID := strings.TrimSpace(q.Get("completionId"))

	if err := validation.New().
		Validate("jobId", jobID, validation.MaxLen("jobId", maxIDParamLen)).
		Validate("completionId", completionID, validation.MaxLen("completionId", maxIDParamLen)).
		Err(); err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}

	switch {
	case jobID != "":
		view, err := h.Svc.QueueJob(r.Context(), jobID)
		if err != nil {
			writeServiceError(w, r, h.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	case completionID != "":
		view, err := h.Svc.QueueJobByCompletionID(r.Context(), completionID)
		if err != nil {
			writeServiceError(w, r, h.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	default:
		opts, err := parseListOptions(r)
		if err != nil {
			writeServiceError(w, r, h.Logger, err)
			return
		}
		resp, err := h.Svc.List(r.Context(), opts)
		if err != nil {
			writeServiceError(w, r, h.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// Get handles GET /api/completions/{id}. The optional jobId query parameter
// is only logged; the lookup uses the path id.
func (h *CompletionHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if jobID := r.URL.Query().Get("jobId"); jobID != "" && h.Logger != nil {
		h.Logger.DebugContext(r.Context(), "completion lookup with job id hint",
			"id", id,
			"job_id", jobID,
		)
	}

	c, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// Status handles GET /api/completions/{id}/status.
func (h *CompletionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	view, err := h.Svc.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, view)
}

// parseListOptions reads status, limit and offset. Missing or zero limits are
// left zero so the service applies its default; oversized limits are clamped there.
func parseListOptions(r *http.Request) (model.CompletionListOptions, error) {
	q := r.URL.Query()
	status := strings.ToLower(strings.TrimSpace(q.Get("status")))
	limit := q.Get("limit")
	offset := q.Get("offset")

	if err := validation.New().
		Validate("status", status, validation.OneOf("status", completionStatuses)).
		Validate("limit", limit, validation.NonNegativeInt("limit")).
		Validate("offset", offset, validation.NonNegativeInt("offset")).
		Err(); err != nil {
		return model.CompletionListOptions{}, err
	}

	var opts model.CompletionListOptions
	if status != "" {
		s := model.CompletionStatus(status)
		opts.Status = &s
	}
	opts.Limit = parseIntQuery(r, "limit", 0)
	opts.Offset = parseIntQuery(r, "offset", 0)
	return opts, nil
}

// parseIntQuery returns the integer value of a query param or a default.
// It is tolerant of missing/invalid values.
func parseIntQuery(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
