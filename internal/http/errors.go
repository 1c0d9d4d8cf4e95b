package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/jobrelay/internal/data"
	apperrors "github.com/target/jobrelay/internal/errors"
)

// errPublic carries a caller-safe message through WriteError.
type errPublic string

func (e errPublic) Error() string { return string(e) }

// statusForError maps a service error to an HTTP status and error code.
func statusForError(err error) (int, string) {
	if errors.Is(err, data.ErrCompletionNotFound) {
		return http.StatusNotFound, string(apperrors.ErrCodeNotFound)
	}
	switch code := apperrors.GetCode(err); code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest, string(code)
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound, string(code)
	case apperrors.ErrCodeConflict:
		return http.StatusConflict, string(code)
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized, string(code)
	case apperrors.ErrCodeUnsupported:
		return http.StatusNotImplemented, string(code)
	default:
		return http.StatusInternalServerError, string(apperrors.ErrCodeInternal)
	}
}

// writeServiceError renders err with the status its AppError code implies.
// Server errors are logged with the request id and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, code := statusForError(err)

	msg := apperrors.PublicMessage(err)
	if errors.Is(err, data.ErrCompletionNotFound) {
		msg = "Completion not found"
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}

	WriteError(w, ErrorParams{Code: status, ErrCode: code, Err: errPublic(msg)})
}
