package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/server/middleware"
)

// readyTimeout bounds the upstream ping behind /readyz.
const readyTimeout = 5 * time.Second

// SystemHandler serves health probes and service metadata.
type SystemHandler struct {
	backend     backend.Backend
	version     string
	authEnabled bool
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(b backend.Backend, version string, authEnabled bool) *SystemHandler {
	return &SystemHandler{backend: b, version: version, authEnabled: authEnabled}
}

// Healthz is a liveness probe. Returns 200 if the process is running.
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is a readiness probe. It pings the backend and returns 503 when
// the backend is unreachable or not configured.
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	if err := h.backend.Ping(ctx); err != nil {
		checks[h.backend.Name()] = "error: " + err.Error()
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks[h.backend.Name()] = "ok"
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// Info handles GET /api/v1/_system and describes this FleetMate instance.
func (h *SystemHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":     "fleetmate",
		"version":  h.version,
		"backend":  h.backend.Name(),
		"auth":     h.authEnabled,
		"entities": model.EntityNames(),
	})
}

// Me handles GET /api/v1/_system/me and echoes the verified token subject.
func (h *SystemHandler) Me(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"subject":       p.Subject,
		"email":         p.Email,
		"name":          p.Name,
	})
}
