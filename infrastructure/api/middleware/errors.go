package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/altaidevorg/letsearch/internal/apperr"
)

// WriteJSON writes a successful {status:"ok", time, data} envelope.
func WriteJSON(w http.ResponseWriter, start time.Time, data any) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Status: "ok",
		Time:   time.Since(start).Seconds(),
		Data:   data,
	})
}

// WriteError maps err to an HTTP status and writes a {status:"error", time,
// message} envelope. Typed api errors carry their own status code; apperr
// sentinels map per spec.md's error table; anything else is a 500.
func WriteError(w http.ResponseWriter, r *http.Request, start time.Time, err error, logger *slog.Logger) {
	status := statusFor(err)

	if logger != nil {
		logger.Error("request error",
			"correlation_id", GetCorrelationID(r.Context()),
			"status", status,
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}

	writeEnvelope(w, status, Envelope{
		Status:  "error",
		Time:    time.Since(start).Seconds(),
		Message: err.Error(),
	})
}

func statusFor(err error) int {
	var apiErr *APIError
	var serverErr *ServerError
	var authErr *AuthenticationError

	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code()
	case errors.As(err, &serverErr):
		return serverErr.StatusCode()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAlreadyExists):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrDimensionMismatch):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrUnsupported):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrProtocol):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrCancelled):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrIO):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
