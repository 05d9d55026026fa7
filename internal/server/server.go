// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/api"
	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/config"
	"github.com/residential-power/outagewatch/internal/core"
	"github.com/residential-power/outagewatch/internal/freeze"
	"github.com/residential-power/outagewatch/internal/health"
	"github.com/residential-power/outagewatch/internal/liveness"
	"github.com/residential-power/outagewatch/internal/messenger"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/migrate"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/notifier"
	"github.com/residential-power/outagewatch/internal/queue"
	"github.com/residential-power/outagewatch/internal/ratelimit"
	"github.com/residential-power/outagewatch/internal/registry"
	"github.com/residential-power/outagewatch/internal/repository/sqlite"
	"github.com/residential-power/outagewatch/internal/store"
	"github.com/residential-power/outagewatch/internal/webapp"
)

// seedCatalog is the static buildings catalog seeded idempotently at
// startup; there is no admin-configurable route to add buildings at
// runtime.
var seedCatalog = []models.Building{
	{ID: 1, Name: "Newcastle House", Address: "12 Newcastle Rd", SectionsCount: 3},
	{ID: 2, Name: "Bellevue Court", Address: "4 Bellevue Ave", SectionsCount: 2},
	{ID: 3, Name: "Harbor Terrace", Address: "9 Harbor Walk", SectionsCount: 2},
}

// Server wires the full outagewatch core: embedded store, repositories,
// aggregator/liveness/freeze/queue/notifier subsystems, and the HTTP API,
// generalizing the teacher's mux-router-plus-http.Server shape onto SQLite.
type Server struct {
	config *config.Config
	clock  clock.Clock
	srv    *http.Server
	db     *store.DB

	monitor  *liveness.Monitor
	q        *queue.Queue
	notif    *notifier.Notifier
	jobw     *notifier.JobWorker
	tracker  *health.Tracker
	closers  []func() error
}

// New constructs a Server from configuration. Call Start to bring up every
// subsystem and block until shutdown.
func New(cfg *config.Config) *Server {
	return &Server{
		config: cfg,
		clock:  clock.System{},
	}
}

// Start initializes the store, migrates the schema, wires every subsystem,
// and serves HTTP until SIGINT/SIGTERM.
func (s *Server) Start() error {
	startedAt := s.clock.Now()
	ctx := context.Background()

	db, err := store.Open(s.config.Store.DBPath)
	if err != nil {
		nuts.L.Fatalf("[Server] failed to open store: %v", err)
	}
	s.db = db

	if err := migrate.Run(ctx, db.SQLX()); err != nil {
		nuts.L.Fatalf("[Server] failed to run migrations: %v", err)
	}
	if err := migrate.SeedBuildings(ctx, db.SQLX(), seedCatalog); err != nil {
		nuts.L.Fatalf("[Server] failed to seed buildings catalog: %v", err)
	}

	buildings := sqlite.NewBuildingRepo(db)
	sensors := sqlite.NewSensorRepo(db)
	sections := sqlite.NewSectionStateRepo(db)
	events := sqlite.NewEventRepo(db)
	subscribers := sqlite.NewSubscriberRepo(db)
	jobs := sqlite.NewJobRepo(db)
	kv := sqlite.NewKVRepo(db)

	canonical, err := registry.Load(s.config.Store.CanonicalMapPath)
	if err != nil {
		nuts.L.Fatalf("[Server] failed to load canonical sensor map: %v", err)
	}

	metrics.Init()

	agg := aggregator.New(buildings, sensors, sections, events, s.clock,
		s.config.Sensing.SensorTimeout, s.config.Sensing.ThresholdUp, s.config.Sensing.ThresholdDown)

	var limiter ratelimit.Limiter
	if s.config.Redis.Addr != "" {
		rl := ratelimit.NewRedisLimiter(s.config.Redis.Addr, s.config.Notify.RatePerSec, s.config.Notify.DedupWindow)
		limiter = rl
		s.closers = append(s.closers, rl.Close)
		nuts.L.Infof("[Server] notifier rate limiter backed by redis at %s", s.config.Redis.Addr)
	} else {
		limiter = ratelimit.NewMemoryLimiter(s.clock, s.config.Notify.RatePerSec, s.config.Notify.DedupWindow)
		nuts.L.Infof("[Server] notifier rate limiter in-memory, REDIS_ADDR unset")
	}

	msg := messenger.NewInMemory()
	notif := notifier.New(subscribers, kv, msg, limiter, s.clock, s.config, s.config.Notify.Concurrency, s.config.Notify.MaxRetries)
	agg.OnTransition(func(t aggregator.Transition) {
		notif.Enqueue(t)
		payload := models.JSON{
			"building_id": t.BuildingID,
			"section_id":  t.SectionID,
			"event_type":  string(t.Event),
			"timestamp":   t.At.Format(time.RFC3339),
		}
		if err := jobs.Enqueue(ctx, &models.AdminJob{
			ID:        nuts.NID("job", 16),
			Kind:      models.JobLightNotify,
			Payload:   payload,
			Status:    models.JobPending,
			CreatedAt: s.clock.Now(),
		}); err != nil {
			nuts.L.Errorf("[Server] failed to record light_notify job: %v", err)
		}
	})
	notif.Start(ctx)
	s.notif = notif

	fz := freeze.New(sensors, s.clock)
	q := queue.New(jobs, s.clock, s.config.Admin.LeaseTTL, s.config.Admin.MaxJobAttempts)
	q.StartReclaimer(ctx)
	s.q = q

	jobw := notifier.NewJobWorker(q, notif, nuts.NID("worker", 8))
	jobw.Start(ctx)
	s.jobw = jobw

	tracker := health.New(db, s.clock, startedAt)
	s.tracker = tracker
	monitor := liveness.New(agg, s.config.Sensing.CheckInterval, func(elapsed time.Duration) {
		tracker.RecordTick(s.clock.Now())
	})
	monitor.Start(ctx)
	s.monitor = monitor

	svc := core.New(s.config, s.clock, canonical, sensors, buildings, agg, fz, q)
	validator := webapp.NewHMACValidator(s.config.Webapp.SharedSecret)
	router := api.NewRouter(svc, s.config, tracker, s.clock, validator)

	wrapped := handlers.CombinedLoggingHandler(os.Stdout, handlers.RecoveryHandler()(router))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      wrapped,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	go func() {
		nuts.L.Infof("[Server] starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.monitor.Stop()
	s.jobw.Stop()
	s.q.Stop()
	s.notif.Stop()
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			nuts.L.Errorf("[Server] error closing resource: %v", err)
		}
	}
	if err := s.db.Close(); err != nil {
		nuts.L.Errorf("[Server] error closing store: %v", err)
	}

	nuts.L.Infof("[Server] server shut down successfully")
	return nil
}
