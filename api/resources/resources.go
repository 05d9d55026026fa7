// FilePath: api/resources/resources.go
package resources

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/config"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/health"
	"github.com/residential-power/outagewatch/internal/ratelimit"
	"github.com/residential-power/outagewatch/internal/webapp"
)

// Resources holds all HTTP resource handlers, wired against the core
// service instead of the teacher's HubService.
type Resources struct {
	Heartbeat *HeartbeatHandlers
	Sensors   *SensorHandlers
	Health    *HealthHandlers
	Admin     *AdminHandlers
}

// NewResources creates a new Resources instance.
func NewResources(svc *core.Service, cfg *config.Config, tracker *health.Tracker, c clock.Clock, validator webapp.InitDataValidator) *Resources {
	heartbeatLimiter := ratelimit.NewPerKeyLimiter(c, 10, time.Second)
	_ = validator // reserved for the mini-app façade hook; no route uses it in this core

	return &Resources{
		Heartbeat: &HeartbeatHandlers{service: svc, cfg: cfg, limiter: heartbeatLimiter},
		Sensors:   &SensorHandlers{service: svc},
		Health:    &HealthHandlers{tracker: tracker},
		Admin:     &AdminHandlers{service: svc, cfg: cfg},
	}
}

func getPaginationParams(r *http.Request) (offset, limit int) {
	query := r.URL.Query()
	offset, _ = strconv.Atoi(query.Get("offset"))
	limit, _ = strconv.Atoi(query.Get("limit"))

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return offset, limit
}

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Errorf("[API] %s", err.Error())
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
