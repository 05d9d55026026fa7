// FilePath: api/resources/api.resource.admin.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/api/middleware"
	"github.com/residential-power/outagewatch/internal/config"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/models"
)

// AdminHandlers serves the gocloak-gated operator control plane: freeze
// control and the admin job queue.
type AdminHandlers struct {
	service *core.Service
	cfg     *config.Config
}

var jobFilterDecoder = schema.NewDecoder()

func init() {
	jobFilterDecoder.IgnoreUnknownKeys(true)
}

type freezeRequest struct {
	SensorUUID string `json:"sensor_uuid"`
	Minutes    int    `json:"minutes,omitempty"`
	IsUp       bool   `json:"is_up"`
}

type unfreezeRequest struct {
	SensorUUID string `json:"sensor_uuid"`
}

type freezeAllRequest struct {
	Minutes int  `json:"minutes,omitempty"`
	IsUp    bool `json:"is_up"`
}

type freezeAllResponse struct {
	Stamp    string `json:"stamp"`
	Affected int64  `json:"affected"`
}

type unfreezeByStampRequest struct {
	Stamp string `json:"stamp"`
}

// @Summary Freeze a sensor
// @Description Pin a sensor's liveness contribution for a bounded window, for deploy/flash tooling
// @Tags admin
// @Accept json
// @Produce json
// @Param freeze body freezeRequest true "Freeze parameters"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.APIError
// @Router /admin/freeze [post]
// @Security BearerAuth
func (h *AdminHandlers) Freeze(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req freezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.SensorUUID == "" {
		respondWithError(w, errors.NewValidationError("sensor_uuid is required", nil).WithRequestID(requestID))
		return
	}
	minutes := req.Minutes
	if minutes <= 0 {
		minutes = int(h.cfg.Admin.DeployFreezeMinutes.Minutes())
	}

	if err := h.service.Freeze(r.Context(), req.SensorUUID, minutes, req.IsUp); err != nil {
		respondWithError(w, errors.NewInternalError("failed to freeze sensor", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Unfreeze a sensor
// @Tags admin
// @Accept json
// @Produce json
// @Param unfreeze body unfreezeRequest true "Unfreeze parameters"
// @Success 200 {object} map[string]string
// @Router /admin/unfreeze [post]
// @Security BearerAuth
func (h *AdminHandlers) Unfreeze(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req unfreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.SensorUUID == "" {
		respondWithError(w, errors.NewValidationError("sensor_uuid is required", nil).WithRequestID(requestID))
		return
	}

	if err := h.service.Unfreeze(r.Context(), req.SensorUUID); err != nil {
		respondWithError(w, errors.NewInternalError("failed to unfreeze sensor", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// @Summary Freeze the whole fleet
// @Description Pin every active sensor ahead of a fleet-wide deploy, returning a stamp for the matching unfreeze-by-stamp call
// @Tags admin
// @Accept json
// @Produce json
// @Param freezeAll body freezeAllRequest true "FreezeAll parameters"
// @Success 200 {object} freezeAllResponse
// @Router /admin/freeze-all [post]
// @Security BearerAuth
func (h *AdminHandlers) FreezeAll(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req freezeAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	minutes := req.Minutes
	if minutes <= 0 {
		minutes = int(h.cfg.Admin.DeployFreezeMinutes.Minutes())
	}

	stamp, affected, err := h.service.FreezeAll(r.Context(), minutes, req.IsUp)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to freeze fleet", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, freezeAllResponse{Stamp: stamp, Affected: affected})
}

// @Summary Unfreeze sensors stamped by a prior freeze-all
// @Tags admin
// @Accept json
// @Produce json
// @Param unfreezeByStamp body unfreezeByStampRequest true "Stamp to release"
// @Success 200 {object} map[string]int64
// @Router /admin/unfreeze-by-stamp [post]
// @Security BearerAuth
func (h *AdminHandlers) UnfreezeByStamp(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req unfreezeByStampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.Stamp == "" {
		respondWithError(w, errors.NewValidationError("stamp is required", nil).WithRequestID(requestID))
		return
	}

	affected, err := h.service.UnfreezeByStamp(r.Context(), req.Stamp)
	if err != nil {
		respondWithError(w, errors.NewValidationError("invalid or unknown stamp", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{"affected": affected})
}

type broadcastRequest struct {
	Text       string `json:"text"`
	BuildingID *int   `json:"building_id,omitempty"`
	SectionID  *int   `json:"section_id,omitempty"`
}

// @Summary Enqueue a broadcast job
// @Description Fan a message out to subscribers with alert_notifications on, via the same dispatch pipeline as light_notify jobs
// @Tags admin
// @Accept json
// @Produce json
// @Param broadcast body broadcastRequest true "Broadcast parameters"
// @Success 201 {object} models.AdminJob
// @Router /admin/jobs [post]
// @Security BearerAuth
func (h *AdminHandlers) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}
	if req.Text == "" {
		respondWithError(w, errors.NewValidationError("text is required", nil).WithRequestID(requestID))
		return
	}

	createdBy := "unknown"
	if user, ok := middleware.UserFromContext(r.Context()); ok {
		createdBy = user.Username
	}

	payload := models.JSON{"text": req.Text}
	if req.BuildingID != nil {
		payload["building_id"] = *req.BuildingID
	}
	if req.SectionID != nil {
		payload["section_id"] = *req.SectionID
	}

	job, err := h.service.Queue().Enqueue(r.Context(), models.JobBroadcast, payload, createdBy, 0)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to enqueue broadcast job", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusCreated, job)
}

// @Summary List admin jobs
// @Description List admin jobs, filtered by status/kind and paginated; since is decoded but not applied
// @Tags admin
// @Produce json
// @Param status query string false "Job status"
// @Param kind query string false "Job kind"
// @Param since query string false "Accepted but not applied to the query"
// @Param offset query int false "Pagination offset"
// @Param limit query int false "Pagination limit (default 50, max 100)"
// @Success 200 {array} models.AdminJob
// @Router /admin/jobs [get]
// @Security BearerAuth
func (h *AdminHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.JobFilters
	if err := jobFilterDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid filter parameters", err).WithRequestID(requestID))
		return
	}
	offset, limit := getPaginationParams(r)

	jobs, err := h.service.Queue().List(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to list jobs", err).WithRequestID(requestID))
		return
	}
	respondWithJSON(w, http.StatusOK, jobs)
}
