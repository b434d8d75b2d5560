// Package prompt picks and persists the daily prompt moment.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/metrics"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store"
)

// ErrInvalidHours is returned when the configured hour range is unusable.
var ErrInvalidHours = errors.New("invalid prompt hour range")

// Scheduler creates one notification record per local day.
type Scheduler struct {
	store   store.Store
	clock   clock.Clock
	zone    clock.Zone
	minHour int
	maxHour int
	log     *zap.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewScheduler creates a scheduler drawing hours from [minHour, maxHour].
func NewScheduler(s store.Store, c clock.Clock, zone clock.Zone, minHour, maxHour int, log *zap.Logger) (*Scheduler, error) {
	if minHour < 0 || maxHour > 23 || minHour > maxHour {
		return nil, fmt.Errorf("%w: %d..%d", ErrInvalidHours, minHour, maxHour)
	}
	return &Scheduler{
		store:   s,
		clock:   c,
		zone:    zone,
		minHour: minHour,
		maxHour: maxHour,
		log:     log,
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// SetRand replaces the random source. Used by tests for reproducible draws.
func (s *Scheduler) SetRand(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd = r
}

// NextDay returns local midnight of tomorrow relative to now.
func (s *Scheduler) NextDay() time.Time {
	return clock.AddDays(s.zone.StartOfLocalDay(s.clock.Now()), 1)
}

// Draw picks a random minute on day: hour in [minHour, maxHour], minute in
// [0, 59], second 0. The result is in UTC.
func (s *Scheduler) Draw(day clock.Date) time.Time {
	s.mu.Lock()
	hour := s.minHour + s.rnd.IntN(s.maxHour-s.minHour+1)
	minute := s.rnd.IntN(60)
	s.mu.Unlock()

	return s.zone.At(day, hour, minute).UTC()
}

// ScheduleNext persists a new record for tomorrow. It does not look for an
// existing record; callers retrying after a failure may create a duplicate,
// which lookups resolve through store.Canonical.
func (s *Scheduler) ScheduleNext(ctx context.Context) (*model.Notification, error) {
	day := s.zone.LocalDate(s.NextDay())
	scheduledAt := s.Draw(day)

	n := &model.Notification{
		Type:        model.NotificationTypeDaily,
		Year:        day.Year,
		Month:       day.Month,
		Day:         day.Day,
		ScheduledAt: scheduledAt,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		metrics.IncrementScheduled("failed")
		return nil, fmt.Errorf("failed to schedule notification for %s: %w", day, err)
	}

	metrics.IncrementScheduled("created")
	s.log.Info("notification scheduled",
		zap.String("notification_id", n.ID),
		zap.String("date", day.String()),
		zap.Time("scheduled_at_utc", scheduledAt),
		zap.Time("scheduled_at_local", scheduledAt.In(s.zone.Location())),
	)
	return n, nil
}

// EnsureNext schedules tomorrow only if no record exists for it yet. The
// boolean reports whether a record was created.
func (s *Scheduler) EnsureNext(ctx context.Context) (*model.Notification, bool, error) {
	day := s.zone.LocalDate(s.NextDay())
	existing, err := store.CanonicalNotification(ctx, s.store, day)
	switch {
	case err == nil:
		metrics.IncrementScheduled("exists")
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		metrics.IncrementScheduled("failed")
		return nil, false, fmt.Errorf("failed to look up notification for %s: %w", day, err)
	}

	n, err := s.ScheduleNext(ctx)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}
