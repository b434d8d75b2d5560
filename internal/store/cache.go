package store

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/model"
)

// NotificationCache is a read-through cache for canonical daily records.
// Only hits are cached: a day with no record yet may get one at any moment.
type NotificationCache struct {
	store Store
	cache *cache.Cache
}

// NewNotificationCache wraps s with a cache whose entries live for ttl.
func NewNotificationCache(s Store, ttl time.Duration) *NotificationCache {
	return &NotificationCache{
		store: s,
		cache: cache.New(ttl, 2*ttl),
	}
}

// Canonical returns the canonical record for date, or ErrNotFound.
func (c *NotificationCache) Canonical(ctx context.Context, date clock.Date) (*model.Notification, error) {
	key := date.String()
	if v, found := c.cache.Get(key); found {
		n := v.(model.Notification)
		return &n, nil
	}

	n, err := CanonicalNotification(ctx, c.store, date)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, *n)
	return n, nil
}
