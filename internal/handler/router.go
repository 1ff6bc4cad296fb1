package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/alfrecampione/golden-review-backend/observability"
)

// NewRouter builds the HTTP surface: the audit route, a liveness probe,
// and the Prometheus scrape endpoint.
func NewRouter(audit AuditUseCase, allowedOrigins []string, logger observability.Logger) http.Handler {
	r := mux.NewRouter()

	r.Handle("/audit/{policyNumber}", NewAuditHandler(audit, logger)).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Use(RequestLogging(logger))
	r.Use(Recovery(logger))

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	})
	return c.Handler(r)
}
