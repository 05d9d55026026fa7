// FilePath: internal/notifier/worker_test.go
package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/messenger"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/queue"
	"github.com/residential-power/outagewatch/internal/repository"
	"github.com/residential-power/outagewatch/internal/store"
)

type fakeJobRepo struct {
	byID map[string]*models.AdminJob
}

func newFakeJobRepo() *fakeJobRepo { return &fakeJobRepo{byID: map[string]*models.AdminJob{}} }

func (f *fakeJobRepo) BeginTx(ctx context.Context) (store.Transaction, error) { return nil, nil }

func (f *fakeJobRepo) Enqueue(ctx context.Context, j *models.AdminJob) error {
	f.byID[j.ID] = j
	return nil
}

func (f *fakeJobRepo) Claim(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*models.AdminJob, error) {
	var oldest *models.AdminJob
	for _, j := range f.byID {
		if j.Status != models.JobPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, repository.ErrNotFound
	}
	oldest.Status = models.JobRunning
	oldest.LeaseOwner = owner
	exp := now.Add(leaseTTL)
	oldest.LeaseExpiresAt = &exp
	oldest.Attempts++
	return oldest, nil
}

func (f *fakeJobRepo) Heartbeat(ctx context.Context, id, owner string, leaseTTL time.Duration, now time.Time, progressCurrent int) error {
	j, ok := f.byID[id]
	if !ok || j.LeaseOwner != owner {
		return repository.ErrNotFound
	}
	j.ProgressCurrent = progressCurrent
	return nil
}

func (f *fakeJobRepo) Finish(ctx context.Context, id string, status models.JobStatus, lastError string, now time.Time) error {
	j, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Status = status
	j.LastError = lastError
	j.FinishedAt = &now
	return nil
}

func (f *fakeJobRepo) Reclaim(ctx context.Context, maxAttempts int, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeJobRepo) Get(ctx context.Context, id string) (*models.AdminJob, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobRepo) List(ctx context.Context, filters models.JobFilters, offset, limit int) ([]*models.AdminJob, error) {
	var out []*models.AdminJob
	for _, j := range f.byID {
		out = append(out, j)
	}
	return out, nil
}

func TestJobWorkerProcessesLightNotifyJob(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	subs := newFakeSubscribers(&models.Subscriber{ChatID: "a", LightNotifications: true, Active: true})
	kv := newFakeKV()
	msg := messenger.NewInMemory()
	n := newNotifierForTest(subs, kv, msg, c, &fakeAdmins{})

	jobsRepo := newFakeJobRepo()
	q := queue.New(jobsRepo, c, time.Minute, 3)
	job, err := q.Enqueue(context.Background(), models.JobLightNotify, models.JSON{
		"building_id": 1,
		"section_id":  1,
		"event_type":  string(models.EventDown),
		"timestamp":   now.Format(time.RFC3339),
	}, "", 0)
	require.NoError(t, err)

	w := NewJobWorker(q, n, "worker-1")
	w.drain(context.Background())

	got, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobDone, got.Status)
	require.Len(t, msg.Sent(), 1)
	require.Equal(t, "a", msg.Sent()[0].ChatID)
}

func TestJobWorkerProcessesBroadcastJob(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	subs := newFakeSubscribers(&models.Subscriber{ChatID: "a", AlertNotifications: true, Active: true})
	kv := newFakeKV()
	msg := messenger.NewInMemory()
	n := newNotifierForTest(subs, kv, msg, c, &fakeAdmins{})

	jobsRepo := newFakeJobRepo()
	q := queue.New(jobsRepo, c, time.Minute, 3)
	job, err := q.Enqueue(context.Background(), models.JobBroadcast, models.JSON{
		"text": "elevator maintenance tonight",
	}, "admin", 0)
	require.NoError(t, err)

	w := NewJobWorker(q, n, "worker-1")
	w.drain(context.Background())

	got, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobDone, got.Status)
	require.Len(t, msg.Sent(), 1)
	require.Equal(t, "elevator maintenance tonight", msg.Sent()[0].Text)
}

func TestJobWorkerFailsJobOnUnknownKind(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	subs := newFakeSubscribers()
	kv := newFakeKV()
	msg := messenger.NewInMemory()
	n := newNotifierForTest(subs, kv, msg, c, &fakeAdmins{})

	jobsRepo := newFakeJobRepo()
	q := queue.New(jobsRepo, c, time.Minute, 3)
	job, err := q.Enqueue(context.Background(), models.JobKind("unknown"), models.JSON{}, "", 0)
	require.NoError(t, err)

	w := NewJobWorker(q, n, "worker-1")
	w.drain(context.Background())

	got, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobFailed, got.Status)
	require.NotEmpty(t, got.LastError)
}
