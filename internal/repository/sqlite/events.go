// FilePath: internal/repository/sqlite/events.go
package sqlite

import (
	"context"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// EventRepo is the append-only power-transition log.
type EventRepo struct {
	db *store.DB
}

// NewEventRepo constructs an EventRepo.
func NewEventRepo(db *store.DB) *EventRepo {
	return &EventRepo{db: db}
}

func (r *EventRepo) BeginTx(ctx context.Context) (store.Transaction, error) {
	return beginTx(ctx, r.db)
}

func (r *EventRepo) Append(ctx context.Context, tx store.Transaction, ev *models.PowerEvent) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO power_events (event_type, building_id, section_id, timestamp)
		VALUES (?, ?, ?, ?)
	`, ev.EventType, ev.BuildingID, ev.SectionID, ev.Timestamp)
	return err
}

func (r *EventRepo) Tail(ctx context.Context, buildingID, sectionID int, limit int) ([]*models.PowerEvent, error) {
	var out []*models.PowerEvent
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT id, event_type, building_id, section_id, timestamp
		FROM power_events WHERE building_id = ? AND section_id = ?
		ORDER BY id DESC LIMIT ?
	`, buildingID, sectionID, limit)
	return out, err
}
