// FilePath: internal/notifier/worker.go
package notifier

import (
	"context"
	"errors"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/queue"
	"github.com/residential-power/outagewatch/internal/repository"
)

const jobWorkerPollInterval = 2 * time.Second

// JobWorker is the data-plane consumer of the admin job queue: it claims
// pending broadcast/light_notify jobs, dispatches them through the
// Notifier's fan-out, heartbeats progress as it goes, and finishes them
// done or failed. Without it, jobs enqueued for audit/broadcast purposes
// would sit pending forever.
type JobWorker struct {
	q     *queue.Queue
	notif *Notifier
	owner string

	stop chan struct{}
	done chan struct{}
}

// NewJobWorker constructs a JobWorker. owner identifies this process to
// the lease table; pass a stable-per-process, unique-across-replicas ID.
func NewJobWorker(q *queue.Queue, notif *Notifier, owner string) *JobWorker {
	return &JobWorker{
		q:     q,
		notif: notif,
		owner: owner,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the claim loop. It runs until ctx is canceled or Stop is
// called.
func (w *JobWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the claim loop to exit and waits for it to drain.
func (w *JobWorker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *JobWorker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(jobWorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain claims and processes jobs until the queue reports empty, so a
// burst of enqueued broadcasts doesn't wait out a full poll interval per
// job.
func (w *JobWorker) drain(ctx context.Context) {
	for {
		job, err := w.q.Claim(ctx, w.owner)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				nuts.L.Errorf("[notifier] job claim error: %v", err)
			}
			return
		}
		w.process(ctx, job)
	}
}

func (w *JobWorker) process(ctx context.Context, job *models.AdminJob) {
	progress := func(sent, total int) {
		if err := w.q.Heartbeat(ctx, job.ID, w.owner, sent); err != nil {
			nuts.L.Errorf("[notifier] job heartbeat error id=%s: %v", job.ID, err)
		}
	}

	var (
		sent, total int
		err         error
	)
	switch job.Kind {
	case models.JobLightNotify:
		sent, total, err = w.processLightNotify(ctx, job, progress)
	case models.JobBroadcast:
		sent, total, err = w.processBroadcast(ctx, job, progress)
	default:
		err = errors.New("unknown job kind: " + string(job.Kind))
	}

	if err != nil {
		nuts.L.Errorf("[notifier] job %s (%s) failed: %v", job.ID, job.Kind, err)
		if finErr := w.q.Finish(ctx, job.ID, models.JobFailed, err.Error()); finErr != nil {
			nuts.L.Errorf("[notifier] job finish error id=%s: %v", job.ID, finErr)
		}
		return
	}

	_ = total
	if finErr := w.q.Finish(ctx, job.ID, models.JobDone, ""); finErr != nil {
		nuts.L.Errorf("[notifier] job finish error id=%s: %v", job.ID, finErr)
	}
	nuts.L.Infof("[notifier] job %s (%s) done, sent=%d", job.ID, job.Kind, sent)
}

// processLightNotify reconstructs the transition recorded in the job's
// payload and redrives it through DispatchTransition. The fast in-memory
// worker pool (Notifier.Enqueue, wired from the aggregator's OnTransition
// hook) has typically already sent this notification by the time this job
// is claimed; the rate limiter's per-{subscriber,eventID} dedup window
// recognizes the identical eventID the two paths compute and suppresses
// the duplicate send, so this path's real job is to genuinely exercise
// the persisted queue rather than double-notify subscribers.
func (w *JobWorker) processLightNotify(ctx context.Context, job *models.AdminJob, progress func(sent, total int)) (int, int, error) {
	buildingID, ok := jsonInt(job.Payload, "building_id")
	if !ok {
		return 0, 0, errors.New("light_notify payload missing building_id")
	}
	sectionID, ok := jsonInt(job.Payload, "section_id")
	if !ok {
		return 0, 0, errors.New("light_notify payload missing section_id")
	}
	eventType, ok := jsonString(job.Payload, "event_type")
	if !ok {
		return 0, 0, errors.New("light_notify payload missing event_type")
	}
	at := w.notif.clock.Now()
	if ts, ok := jsonString(job.Payload, "timestamp"); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			at = parsed
		}
	}

	t := aggregator.Transition{
		BuildingID: buildingID,
		SectionID:  sectionID,
		Event:      models.EventType(eventType),
		At:         at,
	}
	return w.notif.DispatchTransition(ctx, t, progress)
}

// processBroadcast decodes the operator-authored broadcast payload and
// fans it out through DispatchBroadcast, using the job's own ID as the
// dedup eventID so a reclaimed-and-retried job does not re-send within
// the rate limiter's dedup window.
func (w *JobWorker) processBroadcast(ctx context.Context, job *models.AdminJob, progress func(sent, total int)) (int, int, error) {
	text, ok := jsonString(job.Payload, "text")
	if !ok || text == "" {
		return 0, 0, errors.New("broadcast payload missing text")
	}

	var buildingID, sectionID *int
	if v, ok := jsonInt(job.Payload, "building_id"); ok {
		buildingID = &v
	}
	if v, ok := jsonInt(job.Payload, "section_id"); ok {
		sectionID = &v
	}

	return w.notif.DispatchBroadcast(ctx, text, buildingID, sectionID, job.ID, progress)
}

// jsonInt reads an integer field out of a models.JSON payload that has
// round-tripped through SQLite: json.Unmarshal decodes numeric fields as
// float64, never int, so a direct type assertion to int always fails.
func jsonInt(payload models.JSON, key string) (int, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func jsonString(payload models.JSON, key string) (string, bool) {
	v, ok := payload[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
