package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/metrics"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store"
)

// Dispatch statuses reported back to the trigger.
const (
	StatusNoNotification = "No scheduled notification."
	StatusWindowPassed   = "Notification window has passed, skipping."
	StatusAlreadySent    = "Notification already sent today, skipping."
	StatusTooEarly       = "Too early, skipping."
	StatusNoSubscribers  = "No one to notify."
	StatusFailure        = "Failure"
	statusSentFormat     = "Notification sent to %d users."
)

// outcomes label the dispatch metric.
const (
	outcomeSent           = "sent"
	outcomeNoNotification = "no_notification"
	outcomeWindowPassed   = "window_passed"
	outcomeAlreadySent    = "already_sent"
	outcomeTooEarly       = "too_early"
	outcomeNoSubscribers  = "no_subscribers"
	outcomeFailed         = "failed"
)

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title string       `json:"title"`
	Body  string       `json:"body"`
	Data  *PayloadData `json:"data,omitempty"`
}

// PayloadData carries the page the notification click should open.
type PayloadData struct {
	URL string `json:"url"`
}

// Options tunes the dispatcher's timing.
type Options struct {
	// Band is how far ahead of the scheduled instant an invocation may act.
	Band time.Duration
	// LateGrace is how far past the scheduled instant an invocation may still
	// send when nobody has dispatched yet.
	LateGrace time.Duration
	// WaitForDue makes an early invocation sleep until the scheduled instant
	// instead of returning and relying on the next trigger.
	WaitForDue bool
	Payload    Payload
}

// Result is what one invocation did.
type Result struct {
	Status         string
	Code           int
	Sent           int
	Failed         int
	NotificationID string
	outcome        string
}

// Dispatcher sends today's prompt to every subscriber.
type Dispatcher struct {
	store store.Store
	clock clock.Clock
	zone  clock.Zone
	pool  *WorkerPool
	opts  Options
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher fanning out through pool.
func NewDispatcher(s store.Store, c clock.Clock, zone clock.Zone, pool *WorkerPool, opts Options, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store: s,
		clock: c,
		zone:  zone,
		pool:  pool,
		opts:  opts,
		log:   log,
		sleep: sleepContext,
	}
}

// Dispatch runs one invocation. Configuration gaps and timing skips return
// a 200 Result and a nil error. Store failures return a 500 Result and the
// error so the trigger can retry; individual send failures only reduce Sent.
func (d *Dispatcher) Dispatch(ctx context.Context) (Result, error) {
	res, err := d.dispatch(ctx)
	metrics.IncrementDispatchRun(res.outcome)
	if err != nil {
		d.log.Error("dispatch failed", zap.String("notification_id", res.NotificationID), zap.Error(err))
	} else {
		d.log.Info("dispatch finished",
			zap.String("notification_id", res.NotificationID),
			zap.String("status", res.Status),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
		)
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context) (Result, error) {
	now := d.clock.Now()

	n, err := d.current(ctx, now)
	if errors.Is(err, store.ErrNotFound) {
		return skip(StatusNoNotification, outcomeNoNotification, ""), nil
	}
	if err != nil {
		return failure(""), err
	}
	if n.DispatchedAt != nil {
		return skip(StatusAlreadySent, outcomeAlreadySent, n.ID), nil
	}

	diff := n.ScheduledAt.Sub(now)
	d.log.Debug("checking notification",
		zap.String("notification_id", n.ID),
		zap.Time("scheduled_at", n.ScheduledAt),
		zap.Time("now", now),
		zap.Duration("diff", diff),
	)
	switch {
	case diff < -d.opts.LateGrace:
		return skip(StatusWindowPassed, outcomeWindowPassed, n.ID), nil
	case diff > d.opts.Band:
		return skip(StatusTooEarly, outcomeTooEarly, n.ID), nil
	case diff > 0:
		if !d.opts.WaitForDue {
			return skip(StatusTooEarly, outcomeTooEarly, n.ID), nil
		}
		d.log.Info("waiting until push", zap.String("notification_id", n.ID), zap.Duration("wait", diff))
		if err := d.sleep(ctx, diff); err != nil {
			return failure(n.ID), fmt.Errorf("wait for scheduled instant interrupted: %w", err)
		}
		metrics.RecordDispatchWait(diff)
	}

	subs, err := d.store.ListSubscriptions(ctx)
	if err != nil {
		return failure(n.ID), fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return skip(StatusNoSubscribers, outcomeNoSubscribers, n.ID), nil
	}

	won, err := d.store.ClaimDispatch(ctx, n.ID, d.clock.Now())
	if err != nil {
		return failure(n.ID), err
	}
	if !won {
		return skip(StatusAlreadySent, outcomeAlreadySent, n.ID), nil
	}

	payload, err := json.Marshal(d.opts.Payload)
	if err != nil {
		return failure(n.ID), fmt.Errorf("failed to marshal payload: %w", err)
	}

	sent, failed := d.pool.FanOut(ctx, subs, payload)
	return Result{
		Status:         fmt.Sprintf(statusSentFormat, sent),
		Code:           http.StatusOK,
		Sent:           sent,
		Failed:         failed,
		NotificationID: n.ID,
		outcome:        outcomeSent,
	}, nil
}

// current returns the record this invocation acts on. Normally that is the
// one for today's local date. Near midnight the band can reach into the next
// local day, so tomorrow's record is taken when it is already within the band
// and today's is missing, dispatched or past its window.
func (d *Dispatcher) current(ctx context.Context, now time.Time) (*model.Notification, error) {
	today := d.zone.LocalDate(now)
	n, err := store.CanonicalNotification(ctx, d.store, today)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load notification for %s: %w", today, err)
	}

	ahead := d.zone.LocalDate(now.Add(d.opts.Band))
	if ahead == today {
		return n, err
	}
	if n != nil && n.DispatchedAt == nil && n.ScheduledAt.Sub(now) >= -d.opts.LateGrace {
		return n, nil
	}

	next, nextErr := store.CanonicalNotification(ctx, d.store, ahead)
	switch {
	case nextErr == nil && next.ScheduledAt.Sub(now) <= d.opts.Band:
		return next, nil
	case nextErr != nil && !errors.Is(nextErr, store.ErrNotFound):
		return nil, fmt.Errorf("failed to load notification for %s: %w", ahead, nextErr)
	}
	return n, err
}

func skip(status, outcome, notificationID string) Result {
	return Result{Status: status, Code: http.StatusOK, NotificationID: notificationID, outcome: outcome}
}

func failure(notificationID string) Result {
	return Result{Status: StatusFailure, Code: http.StatusInternalServerError, NotificationID: notificationID, outcome: outcomeFailed}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
