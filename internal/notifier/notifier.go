// FilePath: internal/notifier/notifier.go
package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/clock"
	apierrors "github.com/residential-power/outagewatch/internal/errors"
	"github.com/residential-power/outagewatch/internal/messenger"
	"github.com/residential-power/outagewatch/internal/metrics"
	"github.com/residential-power/outagewatch/internal/models"
	"github.com/residential-power/outagewatch/internal/ratelimit"
	"github.com/residential-power/outagewatch/internal/repository"
)

// AdminSet reports whether a chat ID is an administrator, exempt from quiet
// hours and the global light-notifications switch.
type AdminSet interface {
	IsAdmin(chatID string) bool
}

// Notifier fans transitions out to subscribers: a configurable worker pool
// reads jobs off the channel fed by the aggregator's OnTransition hook,
// applies quiet-hours/admin-exemption/rate-limit/dedup policy per subscriber,
// and dispatches through the messenger interface with a bounded retry.
type Notifier struct {
	subscribers repository.SubscriberRepository
	kv          repository.KVRepository
	msg         messenger.Messenger
	limiter     ratelimit.Limiter
	clock       clock.Clock
	admins      AdminSet

	concurrency int
	maxRetries  int

	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	transition aggregator.Transition
}

const (
	progressFlushEvery    = 50
	progressFlushInterval = 2 * time.Second
)

// New constructs a Notifier. Call Start to spin up the worker pool.
func New(
	subscribers repository.SubscriberRepository,
	kv repository.KVRepository,
	msg messenger.Messenger,
	limiter ratelimit.Limiter,
	c clock.Clock,
	admins AdminSet,
	concurrency, maxRetries int,
) *Notifier {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Notifier{
		subscribers: subscribers,
		kv:          kv,
		msg:         msg,
		limiter:     limiter,
		clock:       c,
		admins:      admins,
		concurrency: concurrency,
		maxRetries:  maxRetries,
		jobs:        make(chan job, 256),
	}
}

// Start launches the worker pool. Workers run until ctx is canceled.
func (n *Notifier) Start(ctx context.Context) {
	for i := 0; i < n.concurrency; i++ {
		n.wg.Add(1)
		go n.worker(ctx)
	}
}

// Stop closes the job channel and waits for workers to drain.
func (n *Notifier) Stop() {
	close(n.jobs)
	n.wg.Wait()
}

// Enqueue submits a transition for fan-out. Non-blocking unless the job
// buffer is full, in which case it blocks briefly rather than drop a
// notification-worthy transition.
func (n *Notifier) Enqueue(t aggregator.Transition) {
	n.jobs <- job{transition: t}
}

func (n *Notifier) worker(ctx context.Context) {
	defer n.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-n.jobs:
			if !ok {
				return
			}
			n.handle(ctx, j.transition)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, t aggregator.Transition) {
	if _, _, err := n.DispatchTransition(ctx, t, nil); err != nil {
		nuts.L.Errorf("[notifier] error dispatching transition %d/%d: %v", t.BuildingID, t.SectionID, err)
	}
}

// DispatchTransition fans one transition out to its subscribers, applying
// quiet-hours/admin-exemption/global-switch policy per subscriber. It is
// the low-latency worker pool's dispatch path (progress nil) and also the
// one JobWorker drives when it claims the matching persisted light_notify
// job, reporting sent/total through progress so the job's lease heartbeat
// carries real numbers. Returns how many subscribers passed the filters and
// were handed to dispatch (a send that dedup suppresses or that fails still
// counts) and how many were eligible for the section before per-subscriber
// filtering.
func (n *Notifier) DispatchTransition(ctx context.Context, t aggregator.Transition, progress func(sent, total int)) (int, int, error) {
	subs, err := n.subscribers.ListActiveForSection(ctx, t.BuildingID, t.SectionID)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing subscribers for %d/%d: %w", t.BuildingID, t.SectionID, err)
	}

	globalOff := false
	if val, ok, err := n.kv.Get(ctx, "light_notifications_global"); err == nil && ok && val == "off" {
		globalOff = true
	}

	eventID := fmt.Sprintf("%d-%d-%s-%d", t.BuildingID, t.SectionID, t.Event, t.At.Unix())
	text := formatMessage(t)

	total := len(subs)
	sent := 0
	lastFlush := n.clock.Now()
	for _, sub := range subs {
		if !sub.LightNotifications {
			continue
		}
		isAdmin := n.admins != nil && n.admins.IsAdmin(sub.ChatID)
		if globalOff && !isAdmin {
			continue
		}
		if !isAdmin && sub.InQuietHours(n.clock.Now().Hour()) {
			continue
		}
		n.dispatch(ctx, sub, eventID, text)
		sent++
		if progress != nil {
			now := n.clock.Now()
			if sent%progressFlushEvery == 0 || now.Sub(lastFlush) >= progressFlushInterval {
				progress(sent, total)
				lastFlush = now
			}
		}
	}
	if progress != nil {
		progress(sent, total)
	}
	return sent, total, nil
}

// DispatchBroadcast fans an operator-authored broadcast out to every
// alert-subscribed subscriber matching the optional building/section
// target, the admin job queue's counterpart to DispatchTransition.
// eventID is the dedup key passed to the rate limiter — JobWorker passes
// the job's own ID, so a reclaimed-and-retried job does not immediately
// re-send within the dedup window.
func (n *Notifier) DispatchBroadcast(ctx context.Context, text string, buildingID, sectionID *int, eventID string, progress func(sent, total int)) (int, int, error) {
	subs, err := n.subscribers.ListActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing subscribers for broadcast: %w", err)
	}

	globalOff := false
	if val, ok, err := n.kv.Get(ctx, "light_notifications_global"); err == nil && ok && val == "off" {
		globalOff = true
	}

	var targets []*models.Subscriber
	for _, sub := range subs {
		if !sub.AlertNotifications {
			continue
		}
		if !broadcastMatchesTarget(sub, buildingID, sectionID) {
			continue
		}
		targets = append(targets, sub)
	}

	total := len(targets)
	sent := 0
	lastFlush := n.clock.Now()
	for _, sub := range targets {
		isAdmin := n.admins != nil && n.admins.IsAdmin(sub.ChatID)
		if globalOff && !isAdmin {
			continue
		}
		if !isAdmin && sub.InQuietHours(n.clock.Now().Hour()) {
			continue
		}
		n.dispatch(ctx, sub, eventID, text)
		sent++
		if progress != nil {
			now := n.clock.Now()
			if sent%progressFlushEvery == 0 || now.Sub(lastFlush) >= progressFlushInterval {
				progress(sent, total)
				lastFlush = now
			}
		}
	}
	if progress != nil {
		progress(sent, total)
	}
	return sent, total, nil
}

// broadcastMatchesTarget reports whether sub is in scope for a broadcast
// aimed at the given building/section (nil means "every building"/"every
// section of that building"). A subscriber with no building/section
// preference of its own is treated as global and always matches.
func broadcastMatchesTarget(sub *models.Subscriber, buildingID, sectionID *int) bool {
	if buildingID == nil {
		return true
	}
	if sub.BuildingID != nil && *sub.BuildingID != *buildingID {
		return false
	}
	if sectionID != nil && sub.SectionID != nil && *sub.SectionID != *sectionID {
		return false
	}
	return true
}

func (n *Notifier) dispatch(ctx context.Context, sub *models.Subscriber, eventID, text string) {
	shouldSend, err := n.limiter.ShouldSend(ctx, sub.ChatID, eventID)
	if err != nil {
		nuts.L.Errorf("[notifier] dedup check error chat=%s: %v", sub.ChatID, err)
		return
	}
	if !shouldSend {
		metrics.Notifications.WithLabelValues("suppressed").Inc()
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if err := n.limiter.Allow(ctx); err != nil {
			return
		}
		err := n.msg.SendText(ctx, sub.ChatID, text, "")
		if err == nil {
			metrics.Notifications.WithLabelValues("sent").Inc()
			return
		}
		lastErr = err
		if apierrors.IsPermanent(err) {
			if setErr := n.subscribers.SetActive(ctx, sub.ChatID, false); setErr != nil {
				nuts.L.Errorf("[notifier] error deactivating subscriber %s: %v", sub.ChatID, setErr)
			}
			metrics.Notifications.WithLabelValues("permanent_failure").Inc()
			return
		}
		if !apierrors.IsTransient(err) {
			break
		}
	}
	if lastErr != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		nuts.L.Errorf("[notifier] send failed chat=%s after retries: %v", sub.ChatID, lastErr)
	}
}

func formatMessage(t aggregator.Transition) string {
	if t.Event == models.EventUp {
		return fmt.Sprintf("Power restored: building %d, section %d is back up.", t.BuildingID, t.SectionID)
	}
	return fmt.Sprintf("Power outage: building %d, section %d went down at %s.", t.BuildingID, t.SectionID, t.At.Format(time.RFC3339))
}
