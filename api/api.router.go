// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/residential-power/outagewatch/api/middleware"
	"github.com/residential-power/outagewatch/api/resources"
	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/config"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/health"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/webapp"
)

// Router wires every route to its handler, one auth scheme per
// trust boundary: none for health, a constant-time shared-secret body check
// for heartbeat, X-API-Key (optionally enriched by a bearer token) for the
// sensor listing, and full gocloak role gating for the admin surface.
type Router struct {
	router *mux.Router
	auth   *middleware.KeycloakMiddleware
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(svc *core.Service, cfg *config.Config, tracker *health.Tracker, c clock.Clock, validator webapp.InitDataValidator) *Router {
	r := &Router{
		router: mux.NewRouter(),
		auth: middleware.NewKeycloakMiddleware(middleware.KeycloakConfig{
			URL:          cfg.Keycloak.URL,
			Realm:        cfg.Keycloak.Realm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
		}),
	}

	res := resources.NewResources(svc, cfg, tracker, c, validator)
	r.setupRoutes(res, cfg)
	return r
}

func (r *Router) setupRoutes(res *resources.Resources, cfg *config.Config) {
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public
	api.HandleFunc("/health", res.Health.Check).Methods(http.MethodGet)
	api.HandleFunc("/metrics", metrics.Handler().ServeHTTP).Methods(http.MethodGet)

	// Sensor-facing: heartbeat authenticates via the body's api_key field
	// itself rather than a header.
	api.HandleFunc("/heartbeat", res.Heartbeat.RecordHeartbeat).Methods(http.MethodPost)

	// Sensor-key-gated, with an optional bearer token unlocking admin fields.
	sensors := api.PathPrefix("/sensors").Subrouter()
	sensors.Use(middleware.SensorKeyAuth(cfg.Sensing.SensorAPIKey))
	sensors.Use(r.auth.OptionalAuthenticate)
	sensors.HandleFunc("", res.Sensors.ListSensors).Methods(http.MethodGet)

	// Operator/admin control plane, gocloak-gated.
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.auth.Authenticate)
	admin.Use(r.auth.RequireRoles([]string{"admin"}))
	admin.HandleFunc("/freeze", res.Admin.Freeze).Methods(http.MethodPost)
	admin.HandleFunc("/unfreeze", res.Admin.Unfreeze).Methods(http.MethodPost)
	admin.HandleFunc("/freeze-all", res.Admin.FreezeAll).Methods(http.MethodPost)
	admin.HandleFunc("/unfreeze-by-stamp", res.Admin.UnfreezeByStamp).Methods(http.MethodPost)
	admin.HandleFunc("/jobs", res.Admin.EnqueueJob).Methods(http.MethodPost)
	admin.HandleFunc("/jobs", res.Admin.ListJobs).Methods(http.MethodGet)
}

// ServeHTTP satisfies http.Handler so the router can be dropped straight
// into gorilla/handlers middleware in internal/server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
