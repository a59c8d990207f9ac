// Package http provides the HTTP surface of the bot backend: middleware,
// health endpoints and Prometheus metrics. Route handlers live in subpackages.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"pablos-ai/internal/handler/http/respond"
	"pablos-ai/pkg/security"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus represents the status of a single health check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthHandler reports process health. DB is the history database and may
// be nil for the in-memory backend.
type HealthHandler struct {
	DB             *sql.DB
	HistoryBackend string
	Version        string
}

// ServeHTTP returns 200 when every check passes and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckStatus{}
	healthy := true

	if h.DB != nil {
		c := h.checkDatabase(ctx)
		checks["history"] = c
		healthy = c.Status == statusHealthy
	} else {
		checks["history"] = CheckStatus{
			Status:  statusHealthy,
			Message: "in-memory",
			Details: map[string]any{"backend": h.HistoryBackend},
		}
	}

	resp := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	}
	code := http.StatusOK
	if !healthy {
		resp.Status = statusUnhealthy
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, resp)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	start := time.Now()
	// データベース接続チェック
	if err := h.DB.PingContext(ctx); err != nil {
		slog.Warn("history database ping failed", slog.String("error", security.SanitizeError(err)))
		return CheckStatus{Status: statusUnhealthy, Message: "database unreachable"}
	}

	stats := h.DB.Stats()
	return CheckStatus{
		Status: statusHealthy,
		Details: map[string]any{
			"backend":          h.HistoryBackend,
			"latency_ms":       time.Since(start).Milliseconds(),
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
		},
	}
}

// LiveHandler always answers 200 while the process serves requests.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
