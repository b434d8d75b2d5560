// Package trigger runs the scheduler and the dispatcher periodically inside
// the service process. The HTTP trigger endpoints remain available alongside.
package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"daily-prompt-backend/config"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/notification"
)

// Scheduler creates tomorrow's prompt when it is missing.
type Scheduler interface {
	EnsureNext(ctx context.Context) (*model.Notification, bool, error)
}

// Dispatcher sends today's prompt when it is due.
type Dispatcher interface {
	Dispatch(ctx context.Context) (notification.Result, error)
}

// Runner owns the periodic loop. Ticks never overlap: a dispatch that waits
// for the due instant delays the next tick instead of running beside it.
type Runner struct {
	cfg        config.TriggersConfig
	scheduler  Scheduler
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg config.TriggersConfig, s Scheduler, d Dispatcher, log *zap.Logger) *Runner {
	return &Runner{cfg: cfg, scheduler: s, dispatcher: d, log: log}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	if !r.cfg.Enabled {
		r.log.Info("in-process triggers are disabled, relying on HTTP triggers")
		return
	}
	r.log.Info("starting trigger runner",
		zap.Duration("schedule_interval", r.cfg.ScheduleInterval),
		zap.Duration("dispatch_interval", r.cfg.DispatchInterval))

	r.ScheduleOnce(ctx)
	r.DispatchOnce(ctx)

	scheduleTimer := time.NewTimer(r.cfg.ScheduleInterval)
	defer scheduleTimer.Stop()
	dispatchTimer := time.NewTimer(r.cfg.DispatchInterval)
	defer dispatchTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("trigger runner shutting down")
			return
		case <-scheduleTimer.C:
			r.ScheduleOnce(ctx)
			scheduleTimer.Reset(r.cfg.ScheduleInterval)
		case <-dispatchTimer.C:
			r.DispatchOnce(ctx)
			dispatchTimer.Reset(r.cfg.DispatchInterval)
		}
	}
}

// ScheduleOnce makes sure tomorrow has a prompt. Failures are logged and
// retried on the next tick.
func (r *Runner) ScheduleOnce(ctx context.Context) {
	n, created, err := r.scheduler.EnsureNext(ctx)
	if err != nil {
		r.log.Error("scheduling tomorrow's prompt failed", zap.Error(err))
		return
	}
	if created {
		r.log.Info("scheduled tomorrow's prompt", zap.String("notification_id", n.ID))
	}
}

// DispatchOnce runs one dispatcher invocation.
func (r *Runner) DispatchOnce(ctx context.Context) {
	res, err := r.dispatcher.Dispatch(ctx)
	if err != nil {
		r.log.Error("dispatch failed", zap.String("status", res.Status), zap.Error(err))
		return
	}
	r.log.Debug("dispatch finished", zap.String("status", res.Status), zap.Int("sent", res.Sent))
}
