// Package gate decides, for one user at one instant, whether they must wait,
// may post, may view the feed or have missed today's window.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/metrics"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store"
)

// State is the outcome of a gate evaluation.
type State string

const (
	StateUnknown           State = "UNKNOWN"
	StateNoNotificationYet State = "NO_NOTIFICATION_YET"
	StateWaitingOpensSoon  State = "WAITING_OPENS_SOON"
	StateOpenForPosting    State = "OPEN_FOR_POSTING"
	StateFeedVisible       State = "ALREADY_POSTED_FEED_VISIBLE"
	StateWindowMissed      State = "WINDOW_MISSED"
)

// Decision is a derived, never persisted, gate result.
type Decision struct {
	State State `json:"state"`
	// Remaining is the time left to post; only set while open.
	Remaining time.Duration `json:"-"`
	// OpenedAt is the prompt instant, hidden until it has passed so clients
	// cannot learn the surprise moment in advance.
	OpenedAt *time.Time `json:"opened_at,omitempty"`
}

// CanPost reports whether the user should be sent to the capture flow.
func (d Decision) CanPost() bool { return d.State == StateOpenForPosting }

// FeedVisible reports whether today's feed may be shown.
func (d Decision) FeedVisible() bool { return d.State == StateFeedVisible }

// Evaluate is the gate's transition function. It is pure and total; both
// ends of the open window count as open.
func Evaluate(now time.Time, notification *model.Notification, hasPostedToday bool, openDuration time.Duration) Decision {
	if hasPostedToday {
		return Decision{State: StateFeedVisible}
	}
	if notification == nil {
		return Decision{State: StateNoNotificationYet}
	}

	elapsed := now.Sub(notification.ScheduledAt)
	if elapsed < 0 {
		return Decision{State: StateWaitingOpensSoon}
	}

	openedAt := notification.ScheduledAt
	if elapsed <= openDuration {
		return Decision{State: StateOpenForPosting, Remaining: openDuration - elapsed, OpenedAt: &openedAt}
	}
	return Decision{State: StateWindowMissed, OpenedAt: &openedAt}
}

// NotificationSource returns the canonical record for a local date or
// store.ErrNotFound.
type NotificationSource interface {
	Canonical(ctx context.Context, date clock.Date) (*model.Notification, error)
}

// Service evaluates the gate against stored data.
type Service struct {
	notifications NotificationSource
	store         store.Store
	clock         clock.Clock
	zone          clock.Zone
	openDuration  time.Duration
	log           *zap.Logger
}

// NewService creates a gate service.
func NewService(notifications NotificationSource, s store.Store, c clock.Clock, zone clock.Zone, openDuration time.Duration, log *zap.Logger) *Service {
	return &Service{
		notifications: notifications,
		store:         s,
		clock:         c,
		zone:          zone,
		openDuration:  openDuration,
		log:           log,
	}
}

// Now returns the service clock's current instant.
func (s *Service) Now() time.Time { return s.clock.Now() }

// StartOfToday returns local midnight of the current reference-zone day.
func (s *Service) StartOfToday() time.Time {
	return s.zone.StartOfLocalDay(s.clock.Now())
}

// Today returns the current local date in the reference zone.
func (s *Service) Today() clock.Date {
	return s.zone.LocalDate(s.clock.Now())
}

// Decide evaluates the gate for userID now. When the store cannot be read
// the decision is StateUnknown, which allows neither posting nor the feed.
func (s *Service) Decide(ctx context.Context, userID string) (Decision, error) {
	now := s.clock.Now()
	d, err := s.decideAt(ctx, userID, now)
	if err != nil {
		s.log.Warn("gate evaluation failed", zap.String("user_id", userID), zap.Error(err))
		d = Decision{State: StateUnknown}
	}
	metrics.IncrementGateDecision(string(d.State))
	return d, err
}

func (s *Service) decideAt(ctx context.Context, userID string, now time.Time) (Decision, error) {
	posts, err := s.store.QueryPosts(ctx, store.PostFilter{UserID: userID, Since: s.zone.StartOfLocalDay(now)})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check today's posts: %w", err)
	}
	hasPosted := len(posts) > 0
	if hasPosted {
		return Evaluate(now, nil, true, s.openDuration), nil
	}

	n, err := s.notifications.Canonical(ctx, s.zone.LocalDate(now))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Decision{}, fmt.Errorf("failed to load today's notification: %w", err)
	}
	return Evaluate(now, n, false, s.openDuration), nil
}
