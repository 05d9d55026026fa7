// FilePath: api/resources/api.resource.health.go
package resources

import (
	"net/http"

	"github.com/residential-power/outagewatch/internal/health"
)

// HealthHandlers serves the public liveness probe.
type HealthHandlers struct {
	tracker *health.Tracker
}

// @Summary Health check
// @Description Report process uptime, store connectivity, and time since the last liveness tick
// @Tags health
// @Produce json
// @Success 200 {object} health.Status
// @Router /health [get]
func (h *HealthHandlers) Check(w http.ResponseWriter, r *http.Request) {
	status := h.tracker.Check(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, status)
}
