// FilePath: internal/repository/sqlite/section_state.go
package sqlite

import (
	"context"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// SectionStateRepo manages derived per-section power state.
type SectionStateRepo struct {
	db *store.DB
}

// NewSectionStateRepo constructs a SectionStateRepo.
func NewSectionStateRepo(db *store.DB) *SectionStateRepo {
	return &SectionStateRepo{db: db}
}

func (r *SectionStateRepo) BeginTx(ctx context.Context) (store.Transaction, error) {
	return beginTx(ctx, r.db)
}

func (r *SectionStateRepo) Get(ctx context.Context, buildingID, sectionID int) (*models.SectionPowerState, error) {
	var st models.SectionPowerState
	err := r.db.SQLX().GetContext(ctx, &st, `
		SELECT building_id, section_id, is_up, last_change, updated_at
		FROM section_power_state WHERE building_id = ? AND section_id = ?`, buildingID, sectionID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &st, nil
}

func (r *SectionStateRepo) List(ctx context.Context) ([]*models.SectionPowerState, error) {
	var out []*models.SectionPowerState
	err := r.db.SQLX().SelectContext(ctx, &out, `
		SELECT building_id, section_id, is_up, last_change, updated_at
		FROM section_power_state ORDER BY building_id, section_id`)
	return out, err
}

// Upsert writes st within tx, which the aggregator shares with the
// corresponding PowerEvent append so a transition is atomic.
func (r *SectionStateRepo) Upsert(ctx context.Context, tx store.Transaction, st *models.SectionPowerState) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO section_power_state (building_id, section_id, is_up, last_change, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(building_id, section_id) DO UPDATE SET
			is_up = excluded.is_up,
			last_change = excluded.last_change,
			updated_at = excluded.updated_at
	`, st.BuildingID, st.SectionID, st.IsUp, st.LastChange, st.UpdatedAt)
	return err
}
