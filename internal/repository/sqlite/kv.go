// FilePath: internal/repository/sqlite/kv.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/residential-power/outagewatch/internal/store"
)

// KVRepo is a tiny string key-value store for operator toggles.
type KVRepo struct {
	db *store.DB
}

// NewKVRepo constructs a KVRepo.
func NewKVRepo(db *store.DB) *KVRepo {
	return &KVRepo{db: db}
}

func (r *KVRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.SQLX().GetContext(ctx, &value, `SELECT value FROM kv WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (r *KVRepo) Set(ctx context.Context, key, value string) error {
	return r.db.WithRetry(ctx, func() error {
		_, err := r.db.SQLX().ExecContext(ctx, `
			INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value)
		return err
	})
}
