// FilePath: internal/queue/queue_test.go
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/repository"
	"github.com/residential-power/outagewatch/internal/store"
)

type fakeJobs struct {
	byID        map[string]*models.AdminJob
	reclaimCall struct {
		maxAttempts int
		now         time.Time
	}
	reclaimN int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byID: map[string]*models.AdminJob{}}
}

func (f *fakeJobs) BeginTx(ctx context.Context) (store.Transaction, error) { return nil, nil }
func (f *fakeJobs) Enqueue(ctx context.Context, j *models.AdminJob) error {
	f.byID[j.ID] = j
	return nil
}
func (f *fakeJobs) Claim(ctx context.Context, owner string, leaseTTL time.Duration, now time.Time) (*models.AdminJob, error) {
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
func (f *fakeJobs) Heartbeat(ctx context.Context, id, owner string, leaseTTL time.Duration, now time.Time, progressCurrent int) error {
	j, ok := f.byID[id]
	if !ok || j.LeaseOwner != owner {
		return repository.ErrNotFound
	}
	exp := now.Add(leaseTTL)
	j.LeaseExpiresAt = &exp
	j.ProgressCurrent = progressCurrent
	return nil
}
func (f *fakeJobs) Finish(ctx context.Context, id string, status models.JobStatus, lastError string, now time.Time) error {
	j, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.Status = status
	j.LastError = lastError
	j.FinishedAt = &now
	return nil
}
func (f *fakeJobs) Reclaim(ctx context.Context, maxAttempts int, now time.Time) (int, error) {
	f.reclaimCall.maxAttempts = maxAttempts
	f.reclaimCall.now = now
	n := 0
	for _, j := range f.byID {
		if j.Status != models.JobRunning || j.LeaseExpiresAt == nil || !j.LeaseExpiresAt.Before(now) {
			continue
		}
		if j.Attempts >= maxAttempts {
			j.Status = models.JobFailed
			j.LastError = "lease expired"
		} else {
			j.Status = models.JobPending
		}
		j.LeaseOwner = ""
		j.LeaseExpiresAt = nil
		n++
	}
	f.reclaimN = n
	return n, nil
}
func (f *fakeJobs) Get(ctx context.Context, id string) (*models.AdminJob, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return j, nil
}
func (f *fakeJobs) List(ctx context.Context, filters models.JobFilters, offset, limit int) ([]*models.AdminJob, error) {
	var out []*models.AdminJob
	for _, j := range f.byID {
		if filters.Status != "" && j.Status != filters.Status {
			continue
		}
		if filters.Kind != "" && j.Kind != filters.Kind {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func TestEnqueueAndClaimFIFO(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	jobs := newFakeJobs()
	q := New(jobs, c, time.Minute, 3)

	first, err := q.Enqueue(context.Background(), models.JobBroadcast, models.JSON{"text": "a"}, "admin", 0)
	require.NoError(t, err)
	c.Advance(time.Second)
	_, err = q.Enqueue(context.Background(), models.JobBroadcast, models.JSON{"text": "b"}, "admin", 0)
	require.NoError(t, err)

	claimed, err := q.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, claimed.ID, "the oldest pending job claims first")
	require.Equal(t, models.JobRunning, claimed.Status)
}

func TestClaimOnEmptyQueueIsNotFound(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	q := New(newFakeJobs(), c, time.Minute, 3)

	_, err := q.Claim(context.Background(), "worker-1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHeartbeatExtendsLease(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	jobs := newFakeJobs()
	q := New(jobs, c, time.Minute, 3)

	job, err := q.Enqueue(context.Background(), models.JobLightNotify, nil, "", 10)
	require.NoError(t, err)
	claimed, err := q.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	c.Advance(30 * time.Second)
	require.NoError(t, q.Heartbeat(context.Background(), job.ID, "worker-1", 5))
	require.Equal(t, 5, jobs.byID[job.ID].ProgressCurrent)
}

func TestFinishSetsStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	jobs := newFakeJobs()
	q := New(jobs, c, time.Minute, 3)

	job, err := q.Enqueue(context.Background(), models.JobLightNotify, nil, "", 0)
	require.NoError(t, err)
	require.NoError(t, q.Finish(context.Background(), job.ID, models.JobDone, ""))
	require.Equal(t, models.JobDone, jobs.byID[job.ID].Status)
}

func TestListFiltersByStatusAndKind(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	jobs := newFakeJobs()
	q := New(jobs, c, time.Minute, 3)

	_, _ = q.Enqueue(context.Background(), models.JobBroadcast, nil, "", 0)
	lightJob, _ := q.Enqueue(context.Background(), models.JobLightNotify, nil, "", 0)
	_ = q.Finish(context.Background(), lightJob.ID, models.JobDone, "")

	out, err := q.List(context.Background(), models.JobFilters{Status: models.JobDone}, 0, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, lightJob.ID, out[0].ID)
}

func TestStartReclaimerStopsCleanly(t *testing.T) {
	// StartReclaimer's loop is exercised indirectly here: Queue.Stop must
	// cleanly shut the background goroutine down even if no tick fired yet.
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	jobs := newFakeJobs()
	q := New(jobs, c, time.Minute, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.StartReclaimer(ctx)
	q.Stop()
}
