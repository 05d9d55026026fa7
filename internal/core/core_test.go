// FilePath: internal/core/core_test.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/config"
	apierrors "github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/freeze"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/queue"
	"github.com/residential-power/outagewatch/internal/registry"
	"github.com/residential-power/outagewatch/internal/repository"
	"github.com/residential-power/outagewatch/internal/store"
)

func init() {
	metrics.Init()
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }
func (fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (fakeTx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}
func (fakeTx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func sectionKey(buildingID, sectionID int) string { return fmt.Sprintf("%d/%d", buildingID, sectionID) }

type fakeBuildings struct {
	buildings map[int]*models.Building
}

func (f *fakeBuildings) List(ctx context.Context) ([]*models.Building, error) {
	out := make([]*models.Building, 0, len(f.buildings))
	for _, b := range f.buildings {
		out = append(out, b)
	}
	return out, nil
}
func (f *fakeBuildings) Get(ctx context.Context, id int) (*models.Building, error) {
	b, ok := f.buildings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

type fakeSensors struct {
	byUUID    map[string]*models.Sensor
	bySection map[string][]*models.Sensor
}

func newFakeSensors() *fakeSensors {
	return &fakeSensors{byUUID: map[string]*models.Sensor{}, bySection: map[string][]*models.Sensor{}}
}

func (f *fakeSensors) put(s *models.Sensor) {
	f.byUUID[s.UUID] = s
	k := sectionKey(s.BuildingID, s.SectionID)
	for _, existing := range f.bySection[k] {
		if existing.UUID == s.UUID {
			return
		}
	}
	f.bySection[k] = append(f.bySection[k], s)
}

func (f *fakeSensors) BeginTx(ctx context.Context) (store.Transaction, error) { return fakeTx{}, nil }
func (f *fakeSensors) Upsert(ctx context.Context, s *models.Sensor) error {
	f.put(s)
	return nil
}
func (f *fakeSensors) Get(ctx context.Context, uuid string) (*models.Sensor, error) {
	s, ok := f.byUUID[uuid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}
func (f *fakeSensors) List(ctx context.Context) ([]*models.Sensor, error) {
	out := make([]*models.Sensor, 0, len(f.byUUID))
	for _, s := range f.byUUID {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeSensors) ListBySection(ctx context.Context, buildingID, sectionID int) ([]*models.Sensor, error) {
	return f.bySection[sectionKey(buildingID, sectionID)], nil
}
func (f *fakeSensors) TouchHeartbeat(ctx context.Context, uuid string, at time.Time) error {
	if s, ok := f.byUUID[uuid]; ok {
		s.LastHeartbeat = &at
	}
	return nil
}
func (f *fakeSensors) Freeze(ctx context.Context, uuid string, until time.Time, isUp bool, at time.Time) error {
	return nil
}
func (f *fakeSensors) Unfreeze(ctx context.Context, uuid string) error { return nil }
func (f *fakeSensors) FreezeAll(ctx context.Context, until time.Time, isUp bool, at time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeSensors) UnfreezeByFreezeAt(ctx context.Context, at time.Time) (int64, error) {
	return 0, nil
}

type fakeSections struct {
	states map[string]*models.SectionPowerState
}

func newFakeSections() *fakeSections { return &fakeSections{states: map[string]*models.SectionPowerState{}} }

func (f *fakeSections) BeginTx(ctx context.Context) (store.Transaction, error) { return fakeTx{}, nil }
func (f *fakeSections) Get(ctx context.Context, buildingID, sectionID int) (*models.SectionPowerState, error) {
	st, ok := f.states[sectionKey(buildingID, sectionID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st, nil
}
func (f *fakeSections) List(ctx context.Context) ([]*models.SectionPowerState, error) { return nil, nil }
func (f *fakeSections) Upsert(ctx context.Context, tx store.Transaction, st *models.SectionPowerState) error {
	f.states[sectionKey(st.BuildingID, st.SectionID)] = st
	return nil
}

type fakeEvents struct{ appended []*models.PowerEvent }

func (f *fakeEvents) BeginTx(ctx context.Context) (store.Transaction, error) { return fakeTx{}, nil }
func (f *fakeEvents) Append(ctx context.Context, tx store.Transaction, ev *models.PowerEvent) error {
	f.appended = append(f.appended, ev)
	return nil
}
func (f *fakeEvents) Tail(ctx context.Context, buildingID, sectionID int, limit int) ([]*models.PowerEvent, error) {
	return nil, nil
}

func newTestService(t *testing.T, c clock.Clock, buildings *fakeBuildings, sensors *fakeSensors) *Service {
	t.Helper()
	sections := newFakeSections()
	events := &fakeEvents{}
	agg := aggregator.New(buildings, sensors, sections, events, c, 150*time.Second, 0.5, 0.4)
	canonical := &registry.Canonical{}
	fz := freeze.New(sensors, c)
	q := queue.New(nil, c, time.Minute, 5)
	return New(&config.Config{}, c, canonical, sensors, buildings, agg, fz, q)
}

func TestIngestHeartbeatUnknownBuildingIs404(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{}}
	sensors := newFakeSensors()
	svc := newTestService(t, c, buildings, sensors)

	_, _, err := svc.IngestHeartbeat(context.Background(), "sensor-1", 99, 1)
	require.Error(t, err)
	require.True(t, apierrors.IsNotFound(err))
}

func TestIngestHeartbeatSectionOutOfRangeIsValidation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{1: {ID: 1, Name: "B1", SectionsCount: 2}}}
	sensors := newFakeSensors()
	svc := newTestService(t, c, buildings, sensors)

	_, _, err := svc.IngestHeartbeat(context.Background(), "sensor-1", 1, 3)
	require.Error(t, err)
	require.True(t, apierrors.IsValidation(err))
}

func TestIngestHeartbeatAcceptsAndTouchesNewSensor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{1: {ID: 1, Name: "B1", SectionsCount: 2}}}
	sensors := newFakeSensors()
	svc := newTestService(t, c, buildings, sensors)

	b, s, err := svc.IngestHeartbeat(context.Background(), "sensor-1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, 1, b)
	require.Equal(t, 2, s)

	stored, err := sensors.Get(context.Background(), "sensor-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastHeartbeat)
	require.True(t, stored.LastHeartbeat.Equal(now))
}

func TestIngestHeartbeatFrozenSensorKeepsPinnedPlacement(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{
		1: {ID: 1, Name: "B1", SectionsCount: 2},
		2: {ID: 2, Name: "B2", SectionsCount: 2},
	}}
	sensors := newFakeSensors()
	until := now.Add(time.Hour)
	isUp := true
	sensors.put(&models.Sensor{UUID: "sensor-1", BuildingID: 1, SectionID: 1, FrozenUntil: &until, FrozenIsUp: &isUp})
	svc := newTestService(t, c, buildings, sensors)

	// Heartbeat claims a different placement (building 2, section 2); the
	// frozen sensor must keep its pinned (building 1, section 1).
	b, s, err := svc.IngestHeartbeat(context.Background(), "sensor-1", 2, 2)
	require.NoError(t, err)
	require.Equal(t, 1, b)
	require.Equal(t, 1, s)

	stored, err := sensors.Get(context.Background(), "sensor-1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.BuildingID)
	require.Equal(t, 1, stored.SectionID)
	require.NotNil(t, stored.LastHeartbeat)
	require.True(t, stored.LastHeartbeat.Equal(now), "a frozen sensor's heartbeat still refreshes last_heartbeat")
}

func TestIngestHeartbeatUnknownUUIDFallsBackToRequestPlacement(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{1: {ID: 1, Name: "B1", SectionsCount: 3}}}
	sensors := newFakeSensors()
	svc := newTestService(t, c, buildings, sensors)

	b, s, err := svc.IngestHeartbeat(context.Background(), "never-seen", 1, 3)
	require.NoError(t, err)
	require.Equal(t, 1, b)
	require.Equal(t, 3, s)
}

func TestFreezeAllThenUnfreezeByStampRoundtrips(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	buildings := &fakeBuildings{buildings: map[int]*models.Building{1: {ID: 1, Name: "B1", SectionsCount: 1}}}
	sensors := newFakeSensors()
	svc := newTestService(t, c, buildings, sensors)

	stamp, _, err := svc.FreezeAll(context.Background(), 20, true)
	require.NoError(t, err)
	require.NotEmpty(t, stamp)

	_, err = svc.UnfreezeByStamp(context.Background(), stamp)
	require.NoError(t, err)

	_, err = svc.UnfreezeByStamp(context.Background(), "not-a-timestamp")
	require.Error(t, err)
}
