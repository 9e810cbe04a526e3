package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/signalsfoundry/impact-simulator/internal/logging"
)

var (
	// ErrNotFound is returned when an asteroid ID is not in the current catalog.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed query parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable is returned when an optional dependency was not wired.
	ErrUnavailable = errors.New("unavailable")
)

// StatusCode maps handler errors onto HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusCode(err)
	log := logging.FromContext(r.Context(), h.log)
	if code >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", logging.Int("status", code), logging.Err(err))
	} else {
		log.Debug(r.Context(), "request rejected", logging.Int("status", code), logging.Err(err))
	}
	h.respondJSONStatus(w, code, errorBody{
		Error:     err.Error(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}
