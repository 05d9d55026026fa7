// FilePath: internal/repository/sqlite/common.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/residential-power/outagewatch/internal/repository"
	"github.com/residential-power/outagewatch/internal/store"
)

// mapNotFound converts sql.ErrNoRows into the package-level sentinel so
// callers above the repository layer never import database/sql.
func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

// beginTx is shared by every repository that embeds store.Repository.
func beginTx(ctx context.Context, db *store.DB) (store.Transaction, error) {
	return db.BeginTx(ctx)
}
