package prompt

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store/storetest"
)

func newTestScheduler(t *testing.T, now time.Time, minHour, maxHour int) (*Scheduler, *storetest.Memory, clock.Zone) {
	zone, err := clock.LoadZone("Europe/Rome")
	require.NoError(t, err)
	mem := storetest.New()
	s, err := NewScheduler(mem, clock.Fixed(now), zone, minHour, maxHour, zap.NewNop())
	require.NoError(t, err)
	s.SetRand(rand.New(rand.NewPCG(1, 2)))
	return s, mem, zone
}

func TestScheduler_DrawStaysInRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, _, zone := newTestScheduler(t, now, 9, 22)
	day := clock.Date{Year: 2024, Month: 6, Day: 2}

	seenHours := make(map[int]bool)
	for i := 0; i < 5000; i++ {
		at := s.Draw(day).In(zone.Location())
		assert.GreaterOrEqual(t, at.Hour(), 9)
		assert.LessOrEqual(t, at.Hour(), 22)
		assert.GreaterOrEqual(t, at.Minute(), 0)
		assert.LessOrEqual(t, at.Minute(), 59)
		assert.Zero(t, at.Second())
		assert.Zero(t, at.Nanosecond())
		assert.Equal(t, day, zone.LocalDate(at))
		seenHours[at.Hour()] = true
	}
	assert.Len(t, seenHours, 14, "every hour of the inclusive range should be drawn")
}

func TestScheduler_SingleHourRange(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, _, zone := newTestScheduler(t, now, 23, 23)

	for i := 0; i < 100; i++ {
		at := s.Draw(clock.Date{Year: 2024, Month: 6, Day: 2}).In(zone.Location())
		assert.Equal(t, 23, at.Hour())
	}
}

func TestNewScheduler_RejectsBadHours(t *testing.T) {
	zone, err := clock.LoadZone("Europe/Rome")
	require.NoError(t, err)

	for _, hours := range [][2]int{{-1, 5}, {9, 24}, {15, 9}} {
		_, err := NewScheduler(storetest.New(), clock.Real{}, zone, hours[0], hours[1], zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidHours)
	}
}

func TestScheduler_ScheduleNext(t *testing.T) {
	// 23:30 UTC on May 31 is already June 1 in Rome, so "tomorrow" is June 2.
	now := time.Date(2024, 5, 31, 23, 30, 0, 0, time.UTC)
	s, mem, zone := newTestScheduler(t, now, 9, 22)

	n, err := s.ScheduleNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.NotificationTypeDaily, n.Type)
	assert.Equal(t, clock.Date{Year: 2024, Month: 6, Day: 2}, clock.Date{Year: n.Year, Month: n.Month, Day: n.Day})
	assert.Equal(t, time.UTC, n.ScheduledAt.Location())
	assert.Equal(t, clock.Date{Year: 2024, Month: 6, Day: 2}, zone.LocalDate(n.ScheduledAt))
	assert.Nil(t, n.DispatchedAt)
	assert.Len(t, mem.Notifications, 1)
}

func TestScheduler_ScheduleNextStoreFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, mem, _ := newTestScheduler(t, now, 9, 22)
	mem.CreateNotificationErr = errors.New("database unreachable")

	_, err := s.ScheduleNext(context.Background())
	assert.ErrorIs(t, err, mem.CreateNotificationErr)
	assert.Empty(t, mem.Notifications, "no partial state on failure")
}

func TestScheduler_EnsureNext(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, mem, _ := newTestScheduler(t, now, 9, 22)
	ctx := context.Background()

	first, created, err := s.EnsureNext(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.EnsureNext(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, mem.Notifications, 1)
}

func TestScheduler_EnsureNextLookupFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s, mem, _ := newTestScheduler(t, now, 9, 22)
	mem.FindNotificationsErr = errors.New("timeout")

	_, created, err := s.EnsureNext(context.Background())
	assert.Error(t, err)
	assert.False(t, created)
	assert.Empty(t, mem.Notifications, "must not create a record when existence is unknown")
}
