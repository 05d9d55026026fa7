// FilePath: internal/core/core.go
package core

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/config"
	apierrors "github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/freeze"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/queue"
	"github.com/residential-power/outagewatch/internal/registry"
	"github.com/residential-power/outagewatch/internal/repository"
)

// Service wires the domain components together for the HTTP handlers: the
// generalization of the teacher's HubService, retargeted from hive/sensor
// CRUD onto heartbeat ingestion, freeze control, and the admin job queue.
type Service struct {
	cfg        *config.Config
	clock      clock.Clock
	canonical  *registry.Canonical
	sensors    repository.SensorRepository
	buildings  repository.BuildingRepository
	aggregator *aggregator.Aggregator
	freeze     *freeze.Controller
	queue      *queue.Queue
}

// New constructs a Service.
func New(
	cfg *config.Config,
	c clock.Clock,
	canonical *registry.Canonical,
	sensors repository.SensorRepository,
	buildings repository.BuildingRepository,
	agg *aggregator.Aggregator,
	fz *freeze.Controller,
	q *queue.Queue,
) *Service {
	return &Service{
		cfg:        cfg,
		clock:      c,
		canonical:  canonical,
		sensors:    sensors,
		buildings:  buildings,
		aggregator: agg,
		freeze:     fz,
		queue:      q,
	}
}

// IngestHeartbeat registers a sensor heartbeat, resolving its canonical
// placement if known, and recomputes the affected section's power state.
func (s *Service) IngestHeartbeat(ctx context.Context, uuid string, buildingID, sectionID int) (resolvedBuilding, resolvedSection int, err error) {
	resolvedBuilding, resolvedSection = s.canonical.Resolve(uuid, buildingID, sectionID)
	now := s.clock.Now()

	building, err := s.buildings.Get(ctx, resolvedBuilding)
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, 0, apierrors.NewNotFoundError(fmt.Sprintf("unknown building %d", resolvedBuilding), err)
		}
		return 0, 0, fmt.Errorf("error loading building %d: %w", resolvedBuilding, err)
	}
	if resolvedSection != 0 && (resolvedSection < 1 || resolvedSection > building.SectionsCount) {
		return 0, 0, apierrors.NewValidationError(fmt.Sprintf("section %d out of range for building %d", resolvedSection, resolvedBuilding), nil)
	}

	existing, err := s.sensors.Get(ctx, uuid)
	if err != nil && err != repository.ErrNotFound {
		return 0, 0, fmt.Errorf("error loading sensor %s: %w", uuid, err)
	}

	sensor := &models.Sensor{
		UUID:          uuid,
		BuildingID:    resolvedBuilding,
		SectionID:     resolvedSection,
		IsActive:      true,
		LastHeartbeat: &now,
	}
	if existing != nil {
		sensor.Comment = existing.Comment
		sensor.FrozenUntil = existing.FrozenUntil
		sensor.FrozenIsUp = existing.FrozenIsUp
		sensor.FrozenAt = existing.FrozenAt
		if existing.Frozen(now) {
			// frozen sensors keep their pinned placement; a heartbeat only
			// refreshes last_heartbeat, never rewrites (building_id, section_id).
			sensor.BuildingID = existing.BuildingID
			sensor.SectionID = existing.SectionID
		}
	}
	resolvedBuilding, resolvedSection = sensor.BuildingID, sensor.SectionID

	if err := s.sensors.Upsert(ctx, sensor); err != nil {
		return 0, 0, fmt.Errorf("error upserting sensor %s: %w", uuid, err)
	}
	if err := s.sensors.TouchHeartbeat(ctx, uuid, now); err != nil {
		return 0, 0, fmt.Errorf("error touching heartbeat for %s: %w", uuid, err)
	}

	if err := s.aggregator.TickSection(ctx, resolvedBuilding, resolvedSection); err != nil {
		nuts.L.Warnf("[core] tick after heartbeat error building=%d section=%d: %v", resolvedBuilding, resolvedSection, err)
	}
	return resolvedBuilding, resolvedSection, nil
}

// ListSensors returns the full sensor fleet.
func (s *Service) ListSensors(ctx context.Context) ([]*models.Sensor, error) {
	return s.sensors.List(ctx)
}

// Buildings returns the static buildings catalog.
func (s *Service) Buildings(ctx context.Context) ([]*models.Building, error) {
	return s.buildings.List(ctx)
}

// Freeze pins a sensor's contribution for the given window.
func (s *Service) Freeze(ctx context.Context, uuid string, minutes int, isUp bool) error {
	until := s.clock.Now().Add(durationMinutes(minutes))
	return s.freeze.Freeze(ctx, uuid, until, isUp)
}

// Unfreeze releases a sensor immediately.
func (s *Service) Unfreeze(ctx context.Context, uuid string) error {
	return s.freeze.Unfreeze(ctx, uuid)
}

// FreezeAll pins the whole fleet, for deploy tooling. Returns the freeze
// stamp callers can later pass to UnfreezeByStamp.
func (s *Service) FreezeAll(ctx context.Context, minutes int, isUp bool) (stamp string, affected int64, err error) {
	now := s.clock.Now()
	until := now.Add(durationMinutes(minutes))
	// frozen_at is written with the same instant the stamp is formatted
	// from, so UnfreezeByStamp matches exactly the rows this call pinned.
	affected, err = s.sensors.FreezeAll(ctx, until, isUp, now)
	if err != nil {
		return "", 0, fmt.Errorf("error freezing all sensors: %w", err)
	}
	return now.Format(rfc3339Stamp), affected, nil
}

// UnfreezeByStamp releases every sensor frozen by a prior FreezeAll call
// identified by its returned stamp, without guessing a time window.
func (s *Service) UnfreezeByStamp(ctx context.Context, stamp string) (int64, error) {
	at, err := time.Parse(rfc3339Stamp, stamp)
	if err != nil {
		return 0, fmt.Errorf("error parsing freeze stamp %q: %w", stamp, err)
	}
	return s.freeze.UnfreezeByFreezeAt(ctx, at)
}

// Queue exposes the admin job queue for handlers.
func (s *Service) Queue() *queue.Queue {
	return s.queue
}

const rfc3339Stamp = time.RFC3339Nano

func durationMinutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}
