package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/service/auth"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = 1

// apiError is the client-facing rendering of an internal error.
type apiError struct {
	status  int
	kind    string
	message string
}

// classify maps an error to its HTTP rendering with errors.Is, so wrapping
// by services and stores never changes the outcome. Unknown errors are 500s
// with a generic message.
func classify(err error) apiError {
	switch {
	case errors.Is(err, domain.ErrInvalidRating):
		return apiError{http.StatusBadRequest, shared.KindInvalidRating, "Rating must be an integer between 1 and 5"}
	case errors.Is(err, domain.ErrNotInPlan):
		return apiError{http.StatusConflict, shared.KindNotInPlan, "Problem is not part of today's plan"}
	case errors.Is(err, domain.ErrNotFound):
		return apiError{http.StatusNotFound, shared.KindNotFound, "Not found"}
	case errors.Is(err, domain.ErrConcurrentModification):
		return apiError{http.StatusConflict, shared.KindConcurrentModification,
			"The resource was modified concurrently, please retry"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apiError{http.StatusServiceUnavailable, shared.KindStoreUnavailable,
			"Storage is temporarily unavailable, please retry"}
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return apiError{http.StatusUnauthorized, shared.KindUnauthorized, "Unauthorized"}
	case errors.Is(err, domain.ErrValidation):
		return apiError{http.StatusBadRequest, shared.KindInvalidRequest, validationMessage(err)}
	default:
		return apiError{http.StatusInternalServerError, shared.KindInternal, "An unexpected error occurred"}
	}
}

// validationMessage exposes the field and reason of a ValidationError. Its
// text is built by this service, never by a driver.
func validationMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return "Invalid request: " + ve.Error()
	}
	return "Invalid request"
}

// MapErrorToStatusCode returns the HTTP status for err.
func MapErrorToStatusCode(err error) int {
	return classify(err).status
}

// HandleAPIError writes the error response for err and logs it redacted.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	shared.RespondWithErrorAndLog(w, r, e.status, e.kind, e.message, err)
}
