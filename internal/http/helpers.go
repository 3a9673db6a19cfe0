package http

import (
	"context"
	"errors"
	"net/http"

	"spendlog/internal/core"
	"spendlog/internal/log"
	"spendlog/internal/services"
)

var badRequestErrors = []error{
	errBadRequest,
	services.ErrInvalidParams,
	core.ErrInvalidRange,
	core.ErrMissingRangeBounds,
	core.ErrInvalidMonth,
	core.ErrInvalidAmount,
	core.ErrEmptyItem,
	core.ErrItemTooLong,
	core.ErrInvalidTimestamp,
	core.ErrInvalidCategory,
}

// statusFor maps a handler error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnknownCommand):
		return http.StatusUnprocessableEntity
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it as a JSON error. Internal failures are
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		msg = http.StatusText(code)
	}
	ErrorResponse(code, msg).Write(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	NewJSONResponse().Status(code).Body(v).Write(w)
}
