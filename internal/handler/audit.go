package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/internal/service"
	"github.com/alfrecampione/golden-review-backend/observability"
)

// AuditUseCase is the application entry point behind the audit route.
type AuditUseCase interface {
	AuditPolicy(ctx context.Context, policyNumber string) (*entity.AuditResult, error)
}

// AuditHandler serves GET /audit/{policyNumber}.
type AuditHandler struct {
	usecase AuditUseCase
	logger  observability.Logger
}

// NewAuditHandler creates the audit route handler.
func NewAuditHandler(usecase AuditUseCase, logger observability.Logger) *AuditHandler {
	return &AuditHandler{usecase: usecase, logger: logger}
}

// ServeHTTP runs the audit and maps the failure taxonomy onto HTTP
// statuses. A catalog without an application document is a 200 with
// success=false, not an error status.
func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	policyNumber := mux.Vars(r)["policyNumber"]
	if policyNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("policy number is required"))
		return
	}

	result, err := h.usecase.AuditPolicy(r.Context(), policyNumber)
	if err != nil {
		h.logger.Error(r.Context(), "audit failed", err, observability.Fields{
			"policy_number": policyNumber,
		})

		switch {
		case errors.Is(err, service.ErrPolicyNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("policy not found"))
		case errors.Is(err, service.ErrInvalidCustomerID):
			writeJSON(w, http.StatusBadRequest, errorBody("policy has no valid customer id"))
		case errors.Is(err, service.ErrAnalysisFailed):
			writeJSON(w, http.StatusBadGateway, errorBody("analysis of the application document failed"))
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"message": message,
	}
}
