package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfrecampione/golden-review-backend/internal/entity"
	"github.com/alfrecampione/golden-review-backend/internal/service"
	"github.com/alfrecampione/golden-review-backend/observability"
)

type fakeAudit struct {
	result *entity.AuditResult
	err    error
	calls  []string
}

func (f *fakeAudit) AuditPolicy(ctx context.Context, policyNumber string) (*entity.AuditResult, error) {
	f.calls = append(f.calls, policyNumber)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestServer(audit AuditUseCase) http.Handler {
	return NewRouter(audit, []string{"*"}, observability.NewDiscardLogger())
}

func doRequest(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuditRouteSuccess(t *testing.T) {
	audit := &fakeAudit{result: &entity.AuditResult{
		Success:      true,
		PolicyNumber: "P-100",
		CustomerID:   "123",
		ApplicationInfo: &entity.DetectionResult{
			Found:   true,
			FileKey: "123/f1.pdf",
			Carrier: "progressive",
		},
		AnalysisResult: json.RawMessage(`{"premium":1200}`),
	}}

	rec := doRequest(t, newTestServer(audit), "/audit/P-100")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"P-100"}, audit.calls)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body entity.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "progressive", body.ApplicationInfo.Carrier)
}

func TestAuditRouteNoApplicationFound(t *testing.T) {
	audit := &fakeAudit{result: &entity.AuditResult{
		Success:      false,
		PolicyNumber: "P-200",
		CustomerID:   "456",
		Message:      "No application file found",
	}}

	rec := doRequest(t, newTestServer(audit), "/audit/P-200")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body entity.AuditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "No application file found", body.Message)
}

func TestAuditRouteStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"policy not found", service.ErrPolicyNotFound, http.StatusNotFound},
		{"invalid customer id", service.ErrInvalidCustomerID, http.StatusBadRequest},
		{"analysis failed", service.ErrAnalysisFailed, http.StatusBadGateway},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, newTestServer(&fakeAudit{err: tc.err}), "/audit/P-1")

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestHealthRoute(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeAudit{}), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	rec := doRequest(t, newTestServer(&fakeAudit{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := Recovery(observability.NewDiscardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := doRequest(t, h, "/anything")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestLoggingKeepsProvidedID(t *testing.T) {
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestID(r.Context())
	})
	h := RequestLogging(observability.NewDiscardLogger())(inner)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
