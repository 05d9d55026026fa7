// FilePath: api/resources/api.resource.sensors.go
package resources

import (
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/api/middleware"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/struccyfields"
)

// SensorHandlers serves the sensor-facing fleet listing.
type SensorHandlers struct {
	service *core.Service
}

// @Summary List sensors
// @Description List the sensor fleet with last_heartbeat and freeze state; admin-only fields are redacted unless the caller also presents a valid operator token
// @Tags sensors
// @Produce json
// @Success 200 {array} models.Sensor
// @Failure 401 {object} errors.APIError
// @Router /sensors [get]
func (h *SensorHandlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	sensors, err := h.service.ListSensors(r.Context())
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to list sensors", err).WithRequestID(requestID))
		return
	}

	_, isOperator := middleware.UserFromContext(r.Context())
	filtered, filterErrs := struccyfields.FilterSensors(sensors, isOperator)
	for _, ferr := range filterErrs {
		nuts.L.Warnf("[SensorHandler] field filter error: %v", ferr)
	}

	respondWithJSON(w, http.StatusOK, filtered)
}
