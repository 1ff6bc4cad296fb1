// Package handler exposes the HTTP surface: the policy audit route plus
// health and metrics.
package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alfrecampione/golden-review-backend/observability"
)

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging assigns each request an id, propagates it through the
// context and the X-Request-ID header, and logs the request outcome.
func RequestLogging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := observability.WithRequestID(r.Context(), requestID)
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			logger.Info(ctx, "request handled", observability.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
		})
	}
}

// Recovery converts handler panics into a 500 instead of tearing down
// the connection.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error(r.Context(), "handler panicked", nil, observability.Fields{
						"path":  r.URL.Path,
						"panic": rec,
					})
					writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
