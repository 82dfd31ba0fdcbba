package api

import (
	"net/http"
	"time"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/health"
)

// HealthHandler reports liveness and per-dependency readiness.
type HealthHandler struct {
	checkers []health.HealthChecker
}

func NewHealthHandler(checkers ...health.HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers}
}

// CheckHealth handles GET /api/health.
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	deps := map[string]string{}
	for _, c := range h.checkers {
		if c.IsHealthy() {
			deps[c.Name()] = "healthy"
			continue
		}
		deps[c.Name()] = "unhealthy"
		status = "unhealthy"
	}

	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}
