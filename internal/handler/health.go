package handler

import (
	"log/slog"
	"net/http"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func() error

// HealthHandler answers liveness probes.
type HealthHandler struct {
	checks map[string]HealthCheck
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler over named checks
// (e.g. "database", "broker").
func NewHealthHandler(checks map[string]HealthCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

// HandleHealth runs every check.
//
// HTTP: GET /healthz
// RESPONSE: 200 {"status":"ok","checks":{"database":"ok","broker":"ok"}}, or
// 503 with "unavailable" and the failing check's error.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))

	for name, check := range h.checks {
		if err := check(); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}
