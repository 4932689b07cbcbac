// Package middleware provides chi-compatible HTTP middleware for the
// search façade: correlation IDs, request logging, and centralized error
// rendering into the {status, time, data|message} envelope.
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/altaidevorg/letsearch/internal/log"
)

// CorrelationID adds a correlation ID to the request context and response
// headers, preferring an inbound X-Correlation-ID header and falling back
// to chi's own request ID. The ID is stored under internal/log's
// correlation-ID key, so any handler logging via log.Default().WithContext
// or the search-façade's own slog.Logger picks up the same value the
// client sees echoed back on X-Correlation-ID.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		w.Header().Set("X-Correlation-ID", correlationID)

		ctx := log.WithCorrelationID(r.Context(), correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID retrieves the correlation ID from ctx, if any.
func GetCorrelationID(ctx context.Context) string {
	return log.CorrelationID(ctx)
}
