package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pablos-ai/internal/infra/inference"
)

type fakeMonitor struct {
	statuses []inference.EndpointStatus
	probes   []inference.ProbeResult
	probed   bool
}

func (f *fakeMonitor) Status() []inference.EndpointStatus { return f.statuses }

func (f *fakeMonitor) Probe(ctx context.Context) ([]inference.ProbeResult, error) {
	f.probed = true
	if _, ok := ctx.Deadline(); !ok {
		return nil, context.Canceled
	}
	return f.probes, nil
}

func TestEndpointsHandler(t *testing.T) {
	until := time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC)

	tests := []struct {
		name       string
		statuses   []inference.EndpointStatus
		probes     []inference.ProbeResult
		query      string
		wantCode   int
		wantStatus string
		wantProbed bool
	}{
		{
			name: "all available",
			statuses: []inference.EndpointStatus{
				{Name: "primary", Available: true, CircuitState: "closed"},
				{Name: "endpoint-2", Available: true, CircuitState: "closed"},
			},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name: "one in cooldown",
			statuses: []inference.EndpointStatus{
				{Name: "primary", Available: false, CooldownUntil: &until, CircuitState: "closed"},
				{Name: "endpoint-2", Available: true, CircuitState: "closed"},
			},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name: "none available",
			statuses: []inference.EndpointStatus{
				{Name: "primary", Available: false, CooldownUntil: &until},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
		{
			name: "probe failure degrades",
			statuses: []inference.EndpointStatus{
				{Name: "primary", Available: true},
			},
			probes: []inference.ProbeResult{
				{Name: "primary", Healthy: false, StatusCode: 401, Error: "Unauthorized"},
			},
			query:      "?probe=1",
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantProbed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mon := &fakeMonitor{statuses: tt.statuses, probes: tt.probes}
			h := EndpointsHandler{Monitor: mon}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/endpoints"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantProbed, mon.probed)

			var resp EndpointsResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Endpoints, len(tt.statuses))
			assert.Len(t, resp.Probes, len(tt.probes))
		})
	}
}

func TestEndpointsHandler_StubClient(t *testing.T) {
	stub := inference.NewStubClient(nil)
	h := EndpointsHandler{Monitor: stub}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/endpoints?probe=1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
