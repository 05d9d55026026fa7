// FilePath: internal/queue/queue.go
package queue

import (
	"context"
	"fmt"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/repository"
)

const reclaimInterval = 30 * time.Second

// Queue is the admin control-plane job queue: FIFO by (created_at, id),
// leased by owner with a bounded TTL, with a background reclaimer that
// requeues jobs whose lease lapsed without a heartbeat.
type Queue struct {
	jobs     repository.JobRepository
	clock    clock.Clock
	leaseTTL time.Duration
	maxTries int

	stop chan struct{}
	done chan struct{}
}

// New constructs a Queue.
func New(jobs repository.JobRepository, c clock.Clock, leaseTTL time.Duration, maxAttempts int) *Queue {
	return &Queue{
		jobs:     jobs,
		clock:    c,
		leaseTTL: leaseTTL,
		maxTries: maxAttempts,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue adds a new job in pending state, generating an ID via nuts.NID.
func (q *Queue) Enqueue(ctx context.Context, kind models.JobKind, payload models.JSON, createdBy string, progressTotal int) (*models.AdminJob, error) {
	job := &models.AdminJob{
		ID:            nuts.NID("job", 16),
		Kind:          kind,
		Payload:       payload,
		Status:        models.JobPending,
		CreatedBy:     createdBy,
		CreatedAt:     q.clock.Now(),
		ProgressTotal: progressTotal,
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("error enqueuing job: %w", err)
	}
	return job, nil
}

// Claim leases the oldest pending job for owner, or returns
// repository.ErrNotFound if the queue is empty.
func (q *Queue) Claim(ctx context.Context, owner string) (*models.AdminJob, error) {
	return q.jobs.Claim(ctx, owner, q.leaseTTL, q.clock.Now())
}

// Heartbeat extends a claimed job's lease and records progress.
func (q *Queue) Heartbeat(ctx context.Context, id, owner string, progressCurrent int) error {
	return q.jobs.Heartbeat(ctx, id, owner, q.leaseTTL, q.clock.Now(), progressCurrent)
}

// Finish marks a job done or failed.
func (q *Queue) Finish(ctx context.Context, id string, status models.JobStatus, lastError string) error {
	return q.jobs.Finish(ctx, id, status, lastError, q.clock.Now())
}

// Get returns one job by ID.
func (q *Queue) Get(ctx context.Context, id string) (*models.AdminJob, error) {
	return q.jobs.Get(ctx, id)
}

// List returns jobs matching filters.
func (q *Queue) List(ctx context.Context, filters models.JobFilters, offset, limit int) ([]*models.AdminJob, error) {
	return q.jobs.List(ctx, filters, offset, limit)
}

// StartReclaimer runs the reclaim loop every 30s until Stop is called or ctx
// is canceled, moving expired running jobs back to pending, or to failed
// once max_attempts is reached.
func (q *Queue) StartReclaimer(ctx context.Context) {
	go q.reclaimLoop(ctx)
}

func (q *Queue) reclaimLoop(ctx context.Context) {
	defer close(q.done)
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stop:
			return
		case <-ticker.C:
			n, err := q.jobs.Reclaim(ctx, q.maxTries, q.clock.Now())
			if err != nil {
				nuts.L.Errorf("[queue] reclaim error: %v", err)
				continue
			}
			if n > 0 {
				nuts.L.Infof("[queue] reclaimed %d jobs", n)
				metrics.JobReclaims.Add(float64(n))
			}
		}
	}
}

// Stop signals the reclaim loop to exit and waits for it to finish.
func (q *Queue) Stop() {
	close(q.stop)
	<-q.done
}
