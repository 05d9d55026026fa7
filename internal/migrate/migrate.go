// FilePath: internal/migrate/migrate.go
package migrate

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/models"
)

// step is one named, ordered, additive schema change.
type step struct {
	name string
	sql  string
}

var steps = []step{
	{
		name: "0001_schema_migrations",
		sql: `CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	},
	{
		name: "0002_buildings",
		sql: `CREATE TABLE IF NOT EXISTS buildings (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			sections_count INTEGER NOT NULL DEFAULT 0
		);`,
	},
	{
		name: "0003_sensors",
		sql: `CREATE TABLE IF NOT EXISTS sensors (
			uuid TEXT PRIMARY KEY,
			building_id INTEGER NOT NULL,
			section_id INTEGER NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_heartbeat DATETIME,
			is_active INTEGER NOT NULL DEFAULT 1,
			frozen_until DATETIME,
			frozen_is_up INTEGER,
			frozen_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_sensors_section ON sensors(building_id, section_id);`,
	},
	{
		name: "0004_section_power_state",
		sql: `CREATE TABLE IF NOT EXISTS section_power_state (
			building_id INTEGER NOT NULL,
			section_id INTEGER NOT NULL,
			is_up INTEGER NOT NULL DEFAULT 1,
			last_change DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (building_id, section_id)
		);`,
	},
	{
		name: "0005_power_events",
		sql: `CREATE TABLE IF NOT EXISTS power_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			building_id INTEGER NOT NULL,
			section_id INTEGER NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_power_events_section ON power_events(building_id, section_id, id);`,
	},
	{
		name: "0006_subscribers",
		sql: `CREATE TABLE IF NOT EXISTS subscribers (
			chat_id TEXT PRIMARY KEY,
			building_id INTEGER,
			section_id INTEGER,
			light_notifications INTEGER NOT NULL DEFAULT 1,
			alert_notifications INTEGER NOT NULL DEFAULT 1,
			schedule_notifications INTEGER NOT NULL DEFAULT 1,
			quiet_start INTEGER,
			quiet_end INTEGER,
			active INTEGER NOT NULL DEFAULT 1
		);`,
	},
	{
		name: "0007_admin_jobs",
		sql: `CREATE TABLE IF NOT EXISTS admin_jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL DEFAULT 'pending',
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			finished_at DATETIME,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			attempts INTEGER NOT NULL DEFAULT 0,
			progress_current INTEGER NOT NULL DEFAULT 0,
			progress_total INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			lease_owner TEXT NOT NULL DEFAULT '',
			lease_expires_at DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_admin_jobs_status_created ON admin_jobs(status, created_at);`,
	},
	{
		name: "0008_kv",
		sql: `CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	},
}

// Run applies every pending step in order, recording each in schema_migrations.
// Safe to call on every startup: already-applied steps are skipped.
func Run(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, steps[0].sql); err != nil {
		return fmt.Errorf("error creating schema_migrations: %w", err)
	}

	for _, s := range steps {
		var applied int
		if err := db.GetContext(ctx, &applied, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, s.name); err != nil {
			return fmt.Errorf("error checking migration %s: %w", s.name, err)
		}
		if applied > 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("error applying migration %s: %w", s.name, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES (?)`, s.name); err != nil {
			return fmt.Errorf("error recording migration %s: %w", s.name, err)
		}
		nuts.L.Infof("[migrate] applied %s", s.name)
	}
	return nil
}

// SeedBuildings idempotently inserts the static buildings catalog.
func SeedBuildings(ctx context.Context, db *sqlx.DB, buildings []models.Building) error {
	for _, b := range buildings {
		_, err := db.ExecContext(ctx, `
			INSERT INTO buildings (id, name, address, sections_count)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name=excluded.name, address=excluded.address, sections_count=excluded.sections_count
		`, b.ID, b.Name, b.Address, b.SectionsCount)
		if err != nil {
			return fmt.Errorf("error seeding building %d: %w", b.ID, err)
		}
	}
	return nil
}
