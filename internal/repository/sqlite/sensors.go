// FilePath: internal/repository/sqlite/sensors.go
package sqlite

import (
	"context"
	"time"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// SensorRepo manages the sensor fleet and its freeze state.
type SensorRepo struct {
	db *store.DB
}

// NewSensorRepo constructs a SensorRepo.
func NewSensorRepo(db *store.DB) *SensorRepo {
	return &SensorRepo{db: db}
}

func (r *SensorRepo) BeginTx(ctx context.Context) (store.Transaction, error) {
	return beginTx(ctx, r.db)
}

func (r *SensorRepo) Upsert(ctx context.Context, s *models.Sensor) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			INSERT INTO sensors (uuid, building_id, section_id, comment, created_at, last_heartbeat, is_active, frozen_until, frozen_is_up, frozen_at)
			VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM sensors WHERE uuid = ?), CURRENT_TIMESTAMP), ?, ?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET
				building_id = excluded.building_id,
				section_id = excluded.section_id,
				comment = excluded.comment,
				is_active = excluded.is_active
		`, s.UUID, s.BuildingID, s.SectionID, s.Comment, s.UUID, s.LastHeartbeat, s.IsActive, s.FrozenUntil, s.FrozenIsUp, s.FrozenAt)
		return err
	})
}

func (r *SensorRepo) Get(ctx context.Context, uuid string) (*models.Sensor, error) {
	var s models.Sensor
	err := r.db.SQLX().GetContext(ctx, &s, `
		SELECT uuid, building_id, section_id, comment, created_at, last_heartbeat, is_active, frozen_until, frozen_is_up, frozen_at
		FROM sensors WHERE uuid = ?`, uuid)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *SensorRepo) List(ctx context.Context) ([]*models.Sensor, error) {
	var out []*models.Sensor
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT uuid, building_id, section_id, comment, created_at, last_heartbeat, is_active, frozen_until, frozen_is_up, frozen_at
		FROM sensors ORDER BY building_id, section_id, uuid`)
	return out, err
}

func (r *SensorRepo) ListBySection(ctx context.Context, buildingID, sectionID int) ([]*models.Sensor, error) {
	var out []*models.Sensor
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT uuid, building_id, section_id, comment, created_at, last_heartbeat, is_active, frozen_until, frozen_is_up, frozen_at
		FROM sensors WHERE building_id = ? AND section_id = ? AND is_active = 1
		ORDER BY uuid`, buildingID, sectionID)
	return out, err
}

func (r *SensorRepo) TouchHeartbeat(ctx context.Context, uuid string, at time.Time) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `UPDATE sensors SET last_heartbeat = ? WHERE uuid = ?`, at, uuid)
		return err
	})
}

func (r *SensorRepo) Freeze(ctx context.Context, uuid string, until time.Time, isUp bool, at time.Time) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE sensors SET frozen_until = ?, frozen_is_up = ?, frozen_at = ? WHERE uuid = ?
		`, until, isUp, at, uuid)
		return err
	})
}

func (r *SensorRepo) Unfreeze(ctx context.Context, uuid string) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE sensors SET frozen_until = NULL, frozen_is_up = NULL, frozen_at = NULL WHERE uuid = ?
		`, uuid)
		return err
	})
}

func (r *SensorRepo) FreezeAll(ctx context.Context, until time.Time, isUp bool, at time.Time) (int64, error) {
	var affected int64
	err := r.db.WithRetry(ctx, func() error {
		res, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE sensors SET frozen_until = ?, frozen_is_up = ?, frozen_at = ? WHERE is_active = 1
		`, until, isUp, at)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (r *SensorRepo) UnfreezeByFreezeAt(ctx context.Context, at time.Time) (int64, error) {
	var affected int64
	err := r.db.WithRetry(ctx, func() error {
		res, err := r.db.SQLX().ExecContext(ctx, `
			UPDATE sensors SET frozen_until = NULL, frozen_is_up = NULL, frozen_at = NULL WHERE frozen_at = ?
		`, at)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
