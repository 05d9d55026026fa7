// FilePath: internal/repository/sqlite/subscribers.go
package sqlite

import (
	"context"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// SubscriberRepo manages notification recipients.
type SubscriberRepo struct {
	db *store.DB
}

// NewSubscriberRepo constructs a SubscriberRepo.
func NewSubscriberRepo(db *store.DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

func (r *SubscriberRepo) Upsert(ctx context.Context, s *models.Subscriber) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			INSERT INTO subscribers (chat_id, building_id, section_id, light_notifications, alert_notifications, schedule_notifications, quiet_start, quiet_end, active)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chat_id) DO UPDATE SET
				building_id = excluded.building_id,
				section_id = excluded.section_id,
				light_notifications = excluded.light_notifications,
				alert_notifications = excluded.alert_notifications,
				schedule_notifications = excluded.schedule_notifications,
				quiet_start = excluded.quiet_start,
				quiet_end = excluded.quiet_end,
				active = excluded.active
		`, s.ChatID, s.BuildingID, s.SectionID, s.LightNotifications, s.AlertNotifications, s.ScheduleNotifications, s.QuietStart, s.QuietEnd, s.Active)
		return err
	})
}

func (r *SubscriberRepo) Get(ctx context.Context, chatID string) (*models.Subscriber, error) {
	var s models.Subscriber
	err := r.db.SQLX().GetContext(ctx, &s, `
		SELECT chat_id, building_id, section_id, light_notifications, alert_notifications, schedule_notifications, quiet_start, quiet_end, active
		FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *SubscriberRepo) ListActiveForSection(ctx context.Context, buildingID, sectionID int) ([]*models.Subscriber, error) {
	var out []*models.Subscriber
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT chat_id, building_id, section_id, light_notifications, alert_notifications, schedule_notifications, quiet_start, quiet_end, active
		FROM subscribers
		WHERE active = 1
		  AND (building_id IS NULL OR building_id = ?)
		  AND (section_id IS NULL OR section_id = ?)
	`, buildingID, sectionID)
	return out, err
}

// ListActive returns every active subscriber regardless of building/section
// scope, for broadcast jobs that are not narrowed to one section.
func (r *SubscriberRepo) ListActive(ctx context.Context) ([]*models.Subscriber, error) {
	var out []*models.Subscriber
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT chat_id, building_id, section_id, light_notifications, alert_notifications, schedule_notifications, quiet_start, quiet_end, active
		FROM subscribers WHERE active = 1
	`)
	return out, err
}

func (r *SubscriberRepo) SetActive(ctx context.Context, chatID string, active bool) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `UPDATE subscribers SET active = ? WHERE chat_id = ?`, active, chatID)
		return err
	})
}
