// FilePath: internal/aggregator/aggregator.go
package aggregator

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/clock"
	apierrors "github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/repository"
)

// Transition is emitted whenever a section flips UP<->DOWN.
type Transition struct {
	BuildingID int
	SectionID  int
	Event      models.EventType
	At         time.Time
}

// Aggregator recomputes per-section power state from sensor liveness on
// every monitor tick and after each heartbeat, writing transitions into the
// event log. Runs single-goroutine, sections visited in ascending
// (building_id, section_id) order, per tick.
type Aggregator struct {
	buildings repository.BuildingRepository
	sensors   repository.SensorRepository
	sections  repository.SectionStateRepository
	events    repository.EventRepository
	clock     clock.Clock

	sensorTimeout time.Duration
	thresholdUp   float64
	thresholdDown float64

	emitter *nuts.EventEmitter
}

// New constructs an Aggregator.
func New(
	buildings repository.BuildingRepository,
	sensors repository.SensorRepository,
	sections repository.SectionStateRepository,
	events repository.EventRepository,
	c clock.Clock,
	sensorTimeout time.Duration,
	thresholdUp, thresholdDown float64,
) *Aggregator {
	return &Aggregator{
		buildings:     buildings,
		sensors:       sensors,
		sections:      sections,
		events:        events,
		clock:         c,
		sensorTimeout: sensorTimeout,
		thresholdUp:   thresholdUp,
		thresholdDown: thresholdDown,
		emitter:       nuts.NewEventEmitter(),
	}
}

// OnTransition registers a callback invoked after each committed transition.
// The notifier subsystem subscribes here to enqueue jobs.
func (a *Aggregator) OnTransition(handler func(Transition)) {
	a.emitter.On("section.transition", "aggregator", func(args ...interface{}) {
		if len(args) == 0 {
			return
		}
		if t, ok := args[0].(Transition); ok {
			handler(t)
		}
	})
}

// alive reports whether a sensor counts as "on" right now, honoring freeze.
func (a *Aggregator) alive(s *models.Sensor, now time.Time) bool {
	if s.Frozen(now) {
		return s.FrozenIsUp != nil && *s.FrozenIsUp
	}
	if s.LastHeartbeat == nil {
		return false
	}
	return now.Sub(*s.LastHeartbeat) < a.sensorTimeout
}

// TickSection recomputes one (building, section)'s power state and persists
// any resulting transition atomically. Called after every heartbeat for the
// affected section, and for every section on the periodic monitor tick.
func (a *Aggregator) TickSection(ctx context.Context, buildingID, sectionID int) error {
	now := a.clock.Now()

	active, err := a.sensors.ListBySection(ctx, buildingID, sectionID)
	if err != nil {
		return fmt.Errorf("error listing sensors for section %d/%d: %w", buildingID, sectionID, err)
	}

	if len(active) == 0 {
		nuts.L.Errorf("[aggregator] invariant: section %d/%d has no active sensors", buildingID, sectionID)
		return apierrors.NewInvariantError("section has no active sensors", nil)
	}

	var online int
	for _, s := range active {
		if a.alive(s, now) {
			online++
		}
	}
	total := len(active)
	ratio := float64(online) / float64(total)

	existing, err := a.sections.Get(ctx, buildingID, sectionID)
	wasUp := false // a never-seen section defaults to DOWN: the first observation of a live section emits UP
	if err == nil {
		wasUp = existing.IsUp
	} else if err != repository.ErrNotFound {
		return fmt.Errorf("error loading section state %d/%d: %w", buildingID, sectionID, err)
	}

	isUp := decide(wasUp, online, total, ratio, a.thresholdUp, a.thresholdDown)

	st := &models.SectionPowerState{
		BuildingID: buildingID,
		SectionID:  sectionID,
		IsUp:       isUp,
		UpdatedAt:  now,
	}
	if existing != nil {
		st.LastChange = existing.LastChange
	} else {
		st.LastChange = now
	}

	if isUp == wasUp {
		tx, err := a.sections.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("error starting section-state tx: %w", err)
		}
		defer tx.Rollback()
		if err := a.sections.Upsert(ctx, tx, st); err != nil {
			return fmt.Errorf("error writing unchanged section state %d/%d: %w", buildingID, sectionID, err)
		}
		return tx.Commit()
	}

	st.LastChange = now
	eventType := models.EventDown
	if isUp {
		eventType = models.EventUp
	}

	tx, err := a.sections.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("error starting transition tx: %w", err)
	}
	defer tx.Rollback()

	if err := a.sections.Upsert(ctx, tx, st); err != nil {
		return fmt.Errorf("error writing section state %d/%d: %w", buildingID, sectionID, err)
	}
	if err := a.events.Append(ctx, tx, &models.PowerEvent{
		EventType:  eventType,
		BuildingID: buildingID,
		SectionID:  sectionID,
		Timestamp:  now,
	}); err != nil {
		return fmt.Errorf("error appending power event %d/%d: %w", buildingID, sectionID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transition %d/%d: %w", buildingID, sectionID, err)
	}

	metrics.Transitions.WithLabelValues(string(eventType)).Inc()
	a.emitter.Emit("section.transition", Transition{
		BuildingID: buildingID,
		SectionID:  sectionID,
		Event:      eventType,
		At:         now,
	})
	return nil
}

// decide applies the hysteresis policy: UP iff online>=1 AND ratio>thresholdUp;
// DOWN iff online=0 OR ratio<thresholdDown; otherwise the prior state holds.
// The threshold values themselves fall inside the hold band so that sitting
// exactly at thresholdUp or thresholdDown never flips state on its own.
func decide(wasUp bool, online, total int, ratio, thresholdUp, thresholdDown float64) bool {
	if online == 0 {
		return false
	}
	if ratio > thresholdUp {
		return true
	}
	if ratio < thresholdDown {
		return false
	}
	return wasUp
}

// TickAll recomputes every known (building, section) pair in ascending
// order, for the periodic monitor tick.
func (a *Aggregator) TickAll(ctx context.Context) error {
	buildings, err := a.buildings.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing buildings: %w", err)
	}
	for _, b := range buildings {
		for section := 1; section <= b.SectionsCount; section++ {
			if err := a.TickSection(ctx, b.ID, section); err != nil {
				if apierrors.IsTransient(err) {
					return err
				}
				nuts.L.Errorf("[aggregator] tick error building=%d section=%d: %v", b.ID, section, err)
				continue
			}
		}
	}
	return nil
}
