package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/redact"
)

// Error kinds carried in ErrorResponse.Error.
const (
	KindInvalidRating          = "invalid_rating"
	KindInvalidRequest         = "invalid_request"
	KindNotFound               = "not_found"
	KindNotInPlan              = "not_in_plan"
	KindConcurrentModification = "concurrent_modification"
	KindStoreUnavailable       = "store_unavailable"
	KindUnauthorized           = "unauthorized"
	KindInternal               = "internal"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", redact.Attr(err))
	}
}

// RespondWithError writes an error body of the given kind.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   kind,
		Message: message,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithErrorAndLog writes an error body and logs err with secrets
// redacted. The raw error never reaches the client. 5xx responses log at
// ERROR, 409 at WARN and other 4xx at DEBUG.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	kind string,
	message string,
	err error,
) {
	attrs := []slog.Attr{
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("kind", kind),
	}
	if err != nil {
		attrs = append(attrs, redact.Attr(err))
	}

	level := slog.LevelDebug
	switch {
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	case status == http.StatusConflict:
		level = slog.LevelWarn
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", attrs...)

	RespondWithError(w, r, status, kind, message)
}
