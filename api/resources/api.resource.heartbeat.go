// FilePath: api/resources/api.resource.heartbeat.go
package resources

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"regexp"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/config"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/ratelimit"
)

// HeartbeatHandlers serves the sensor-facing heartbeat ingress.
type HeartbeatHandlers struct {
	service *core.Service
	cfg     *config.Config
	limiter *ratelimit.PerKeyLimiter
}

var sensorUUIDPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

type heartbeatRequest struct {
	APIKey     string `json:"api_key"`
	BuildingID int    `json:"building_id"`
	SensorUUID string `json:"sensor_uuid"`
	SectionID  int    `json:"section_id,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

type heartbeatResponse struct {
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Building   int    `json:"building"`
	SensorUUID string `json:"sensor_uuid"`
}

// @Summary Record a sensor heartbeat
// @Description Accept one ESP32 liveness beat and opportunistically recompute its section's power state
// @Tags heartbeat
// @Accept json
// @Produce json
// @Param heartbeat body heartbeatRequest true "Heartbeat payload"
// @Success 200 {object} heartbeatResponse
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Failure 404 {object} errors.APIError
// @Failure 429 {object} errors.APIError
// @Router /heartbeat [post]
func (h *HeartbeatHandlers) RecordHeartbeat(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.Heartbeats.WithLabelValues("invalid").Inc()
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.cfg.Sensing.SensorAPIKey)) != 1 {
		metrics.Heartbeats.WithLabelValues("unauthorized").Inc()
		respondWithError(w, errors.NewAuthError("invalid api_key", nil).WithRequestID(requestID))
		return
	}

	if !sensorUUIDPattern.MatchString(req.SensorUUID) {
		metrics.Heartbeats.WithLabelValues("invalid").Inc()
		respondWithError(w, errors.NewValidationError("sensor_uuid must match [a-z0-9_-]{1,64}", nil).WithRequestID(requestID))
		return
	}

	if !h.limiter.Allow(req.SensorUUID) {
		metrics.Heartbeats.WithLabelValues("rate_limited").Inc()
		respondWithError(w, errors.NewRateLimitError("sensor heartbeat rate exceeded", nil).WithRequestID(requestID))
		return
	}

	resolvedBuilding, _, err := h.service.IngestHeartbeat(r.Context(), req.SensorUUID, req.BuildingID, req.SectionID)
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			metrics.Heartbeats.WithLabelValues(string(apiErr.Type)).Inc()
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		metrics.Heartbeats.WithLabelValues("error").Inc()
		respondWithError(w, errors.NewInternalError("failed to record heartbeat", err).WithRequestID(requestID))
		return
	}

	metrics.Heartbeats.WithLabelValues("ok").Inc()
	respondWithJSON(w, http.StatusOK, heartbeatResponse{
		Status:     "ok",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Building:   resolvedBuilding,
		SensorUUID: req.SensorUUID,
	})
}
