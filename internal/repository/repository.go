// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// BuildingRepository serves the static buildings catalog.
type BuildingRepository interface {
	List(ctx context.Context) ([]*models.Building, error)
	Get(ctx context.Context, id int) (*models.Building, error)
}

// SensorRepository manages the sensor fleet, including freeze state.
type SensorRepository interface {
	store.Repository
	Upsert(ctx context.Context, sensor *models.Sensor) error
	Get(ctx context.Context, uuid string) (*models.Sensor, error)
	List(ctx context.Context) ([]*models.Sensor, error)
	ListBySection(ctx context.Context, buildingID, sectionID int) ([]*models.Sensor, error)
	TouchHeartbeat(ctx context.Context, uuid string, at time.Time) error
	Freeze(ctx context.Context, uuid string, until time.Time, isUp bool, at time.Time) error
	Unfreeze(ctx context.Context, uuid string) error
	FreezeAll(ctx context.Context, until time.Time, isUp bool, at time.Time) (int64, error)
	UnfreezeByFreezeAt(ctx context.Context, at time.Time) (int64, error)
}

// SectionStateRepository manages derived per-section power state.
type SectionStateRepository interface {
	store.Repository
	Get(ctx context.Context, buildingID, sectionID int) (*models.SectionPowerState, error)
	List(ctx context.Context) ([]*models.SectionPowerState, error)
	Upsert(ctx context.Context, tx store.Transaction, st *models.SectionPowerState) error
}

// EventRepository is the append-only power-transition log.
type EventRepository interface {
	store.Repository
	Append(ctx context.Context, tx store.Transaction, ev *models.PowerEvent) error
	Tail(ctx context.Context, buildingID, sectionID int, limit int) ([]*models.PowerEvent, error)
}

// SubscriberRepository manages notification recipients.
type SubscriberRepository interface {
	Upsert(ctx context.Context, sub *models.Subscriber) error
	Get(ctx context.Context, chatID string) (*models.Subscriber, error)
	ListActiveForSection(ctx context.Context, buildingID, sectionID int) ([]*models.Subscriber, error)
	ListActive(ctx context.Context) ([]*models.Subscriber, error)
	SetActive(ctx context.Context, chatID string, active bool) error
}

// JobRepository manages the admin control-plane job queue.
type JobRepository interface {
	store.Repository
	Enqueue(ctx context.Context, job *models.AdminJob) error
	Claim(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*models.AdminJob, error)
	Heartbeat(ctx context.Context, id, owner string, leaseTTL time.Duration, now time.Time, progressCurrent int) error
	Finish(ctx context.Context, id string, status models.JobStatus, lastError string, now time.Time) error
	Reclaim(ctx context.Context, maxAttempts int, now time.Time) (int, error)
	Get(ctx context.Context, id string) (*models.AdminJob, error)
	List(ctx context.Context, filters models.JobFilters, offset, limit int) ([]*models.AdminJob, error)
}

// KVRepository is a tiny string key-value store for operator toggles
// (e.g. light_notifications_global).
type KVRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
