package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pablos-ai/internal/handler/http/respond"
	"pablos-ai/internal/infra/inference"
)

// EndpointMonitor exposes the health of the inference endpoints.
type EndpointMonitor interface {
	Status() []inference.EndpointStatus
	Probe(ctx context.Context) ([]inference.ProbeResult, error)
}

// EndpointsResponse is the body of GET /health/endpoints.
type EndpointsResponse struct {
	Status    string                     `json:"status"`
	Available int                        `json:"available"`
	Endpoints []inference.EndpointStatus `json:"endpoints"`
	Probes    []inference.ProbeResult    `json:"probes,omitempty"`
}

// EndpointsHandler reports rotation state of every inference endpoint.
// With ?probe=1 it also calls GET /models on each of them.
type EndpointsHandler struct {
	Monitor      EndpointMonitor
	ProbeTimeout time.Duration
}

// ServeHTTP answers 200 while at least one endpoint is usable, 503 otherwise.
// "degraded" means some endpoints are in cooldown, have an open breaker or
// failed the probe.
func (h EndpointsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statuses := h.Monitor.Status()
	resp := EndpointsResponse{Endpoints: statuses}
	for _, s := range statuses {
		if s.Available {
			resp.Available++
		}
	}

	degraded := resp.Available < len(statuses)

	if r.URL.Query().Get("probe") == "1" {
		timeout := h.ProbeTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		probes, err := h.Monitor.Probe(ctx)
		if err != nil {
			slog.Warn("endpoint probe incomplete", slog.Any("error", err))
		}
		resp.Probes = probes
		for _, p := range probes {
			if !p.Healthy {
				degraded = true
			}
		}
	}

	code := http.StatusOK
	switch {
	case resp.Available == 0:
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	case degraded:
		resp.Status = "degraded"
	default:
		resp.Status = statusHealthy
	}
	respond.JSON(w, code, resp)
}
