package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// checkTimeout bounds each component ping so a hung dependency cannot stall
// the health endpoint past a load balancer's own timeout.
const checkTimeout = 2 * time.Second

// Check is one dependency pinged by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint. It pings each registered
// dependency (database, cache, archive storage) and reports per-component
// status, returning 503 if any component is down.
type HealthHandler struct {
	logger *slog.Logger
	checks []Check
}

// NewHealthHandler creates a HealthHandler probing the given dependencies.
func NewHealthHandler(logger *slog.Logger, checks ...Check) *HealthHandler {
	return &HealthHandler{logger: logger, checks: checks}
}

// HealthCheck reports overall and per-component health.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	components := make(map[string]string, len(h.checks))

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Ping(ctx)
		cancel()

		if err != nil {
			h.logger.WarnContext(r.Context(), "health check failed",
				slog.String("component", c.Name),
				slog.String("error", err.Error()),
			)
			components[c.Name] = "down"
			status = http.StatusServiceUnavailable
		} else {
			components[c.Name] = "ok"
		}
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(components) > 0 {
		body["components"] = components
	}
	writeJSON(w, status, body)
}
