// FilePath: internal/health/health_test.go
package health

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/migrate"
	"github.com/residential-power/outagewatch/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "health.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, migrate.Run(context.Background(), db.SQLX()))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckReportsOkWithFreshDB(t *testing.T) {
	startedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(startedAt)
	db := openTestDB(t)

	tracker := New(db, c, startedAt)
	c.Advance(5 * time.Minute)

	status := tracker.Check(context.Background())
	require.Equal(t, "ok", status.Status)
	require.True(t, status.DBOk)
	require.EqualValues(t, 300, status.UptimeSec)
	require.Zero(t, status.LastTickAgoSec, "no tick recorded yet")
}

func TestCheckReportsLastTickAge(t *testing.T) {
	startedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(startedAt)
	db := openTestDB(t)

	tracker := New(db, c, startedAt)
	tracker.RecordTick(startedAt.Add(10 * time.Second))
	c.Advance(40 * time.Second)

	status := tracker.Check(context.Background())
	require.EqualValues(t, 30, status.LastTickAgoSec)
}

func TestCheckReportsDegradedWhenDBClosed(t *testing.T) {
	startedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(startedAt)
	db := openTestDB(t)
	tracker := New(db, c, startedAt)

	require.NoError(t, db.Close())

	status := tracker.Check(context.Background())
	require.Equal(t, "degraded", status.Status)
	require.False(t, status.DBOk)
}
