// FilePath: internal/freeze/freeze.go
package freeze

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/repository"
)

// Controller lets operators pin a sensor's contribution to the aggregator
// for a bounded window, so firmware flashing or deploys don't read as an
// outage. The aggregator never asks "is a deploy running?" — it only ever
// sees the sensor-level frozen_* columns this controller writes.
type Controller struct {
	sensors repository.SensorRepository
	clock   clock.Clock
}

// New constructs a freeze Controller.
func New(sensors repository.SensorRepository, c clock.Clock) *Controller {
	return &Controller{sensors: sensors, clock: c}
}

// Freeze pins uuid to isUp until the given instant.
func (c *Controller) Freeze(ctx context.Context, uuid string, until time.Time, isUp bool) error {
	now := c.clock.Now()
	if err := c.sensors.Freeze(ctx, uuid, until, isUp, now); err != nil {
		return fmt.Errorf("error freezing sensor %s: %w", uuid, err)
	}
	nuts.L.Infof("[freeze] sensor=%s pinned is_up=%v until=%s", uuid, isUp, until.Format(time.RFC3339))
	return nil
}

// Unfreeze releases uuid back to normal liveness rules immediately.
func (c *Controller) Unfreeze(ctx context.Context, uuid string) error {
	if err := c.sensors.Unfreeze(ctx, uuid); err != nil {
		return fmt.Errorf("error unfreezing sensor %s: %w", uuid, err)
	}
	nuts.L.Infof("[freeze] sensor=%s released", uuid)
	return nil
}

// FreezeAll pins every active sensor, for deploy tooling that flashes the
// whole fleet at once. Returns the number of sensors affected.
func (c *Controller) FreezeAll(ctx context.Context, until time.Time, isUp bool) (int64, error) {
	now := c.clock.Now()
	n, err := c.sensors.FreezeAll(ctx, until, isUp, now)
	if err != nil {
		return 0, fmt.Errorf("error freezing all sensors: %w", err)
	}
	nuts.L.Infof("[freeze] pinned %d sensors is_up=%v until=%s", n, isUp, until.Format(time.RFC3339))
	return n, nil
}

// UnfreezeByFreezeAt releases every sensor whose freeze was stamped at the
// given instant, the bulk counterpart deploy tooling uses to undo a FreezeAll
// call by its own stamp rather than guessing a window.
func (c *Controller) UnfreezeByFreezeAt(ctx context.Context, at time.Time) (int64, error) {
	n, err := c.sensors.UnfreezeByFreezeAt(ctx, at)
	if err != nil {
		return 0, fmt.Errorf("error unfreezing stamped sensors: %w", err)
	}
	nuts.L.Infof("[freeze] released %d sensors stamped at %s", n, at.Format(time.RFC3339))
	return n, nil
}
