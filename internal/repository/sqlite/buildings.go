// FilePath: internal/repository/sqlite/buildings.go
package sqlite

import (
	"context"

	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/store"
)

// BuildingRepo serves the static buildings catalog.
type BuildingRepo struct {
	db *store.DB
}

// NewBuildingRepo constructs a BuildingRepo.
func NewBuildingRepo(db *store.DB) *BuildingRepo {
	return &BuildingRepo{db: db}
}

func (r *BuildingRepo) List(ctx context.Context) ([]*models.Building, error) {
	var out []*models.Building
	err := r.db.SQLX().SelectContext(ctx, &out, `SELECT id, name, address, sections_count FROM buildings ORDER BY id`)
	return out, err
}

func (r *BuildingRepo) Get(ctx context.Context, id int) (*models.Building, error) {
	var b models.Building
	err := r.db.SQLX().GetContext(ctx, &b, `SELECT id, name, address, sections_count FROM buildings WHERE id = ?`, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}
