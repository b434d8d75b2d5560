// Package storetest provides an in-memory store.Store for package tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store"
)

// Memory is a mutex-guarded in-memory store. Setting one of the *Err fields
// makes the matching method fail.
type Memory struct {
	mu sync.Mutex

	Notifications []model.Notification
	Subscriptions []model.PushSubscription
	Posts         []model.Post
	Friends       map[string][]string

	CreateNotificationErr error
	FindNotificationsErr  error
	ClaimErr              error
	ListSubscriptionsErr  error
	QueryPostsErr         error
	FriendsErr            error

	nextID int
}

var _ store.Store = (*Memory)(nil)

// New returns an empty Memory store.
func New() *Memory {
	return &Memory{Friends: make(map[string][]string)}
}

func (m *Memory) CreateNotification(_ context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateNotificationErr != nil {
		return m.CreateNotificationErr
	}
	m.nextID++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%03d", m.nextID)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Unix(int64(m.nextID), 0).UTC()
	}
	m.Notifications = append(m.Notifications, *n)
	return nil
}

func (m *Memory) FindNotifications(_ context.Context, date clock.Date, notificationType string) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindNotificationsErr != nil {
		return nil, m.FindNotificationsErr
	}
	var out []model.Notification
	for _, n := range m.Notifications {
		if n.Year == date.Year && n.Month == date.Month && n.Day == date.Day && n.Type == notificationType {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Memory) ClaimDispatch(_ context.Context, notificationID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return false, m.ClaimErr
	}
	for i := range m.Notifications {
		if m.Notifications[i].ID == notificationID {
			if m.Notifications[i].DispatchedAt != nil {
				return false, nil
			}
			claimed := at
			m.Notifications[i].DispatchedAt = &claimed
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) UpsertSubscription(_ context.Context, sub *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Subscriptions {
		if m.Subscriptions[i].Endpoint == sub.Endpoint {
			m.Subscriptions[i].UserID = sub.UserID
			m.Subscriptions[i].P256DH = sub.P256DH
			m.Subscriptions[i].Auth = sub.Auth
			return nil
		}
	}
	m.Subscriptions = append(m.Subscriptions, *sub)
	return nil
}

func (m *Memory) GetSubscription(_ context.Context, endpoint string) (*model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Subscriptions {
		if s.Endpoint == endpoint {
			found := s
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) ListSubscriptions(_ context.Context) ([]model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListSubscriptionsErr != nil {
		return nil, m.ListSubscriptionsErr
	}
	return append([]model.PushSubscription(nil), m.Subscriptions...), nil
}

func (m *Memory) DeleteSubscription(_ context.Context, endpoint, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Subscriptions[:0]
	for _, s := range m.Subscriptions {
		if s.Endpoint != endpoint || s.UserID != userID {
			kept = append(kept, s)
		}
	}
	m.Subscriptions = kept
	return nil
}

func (m *Memory) QueryPosts(_ context.Context, filter store.PostFilter) ([]model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryPostsErr != nil {
		return nil, m.QueryPostsErr
	}
	var out []model.Post
	for _, p := range m.Posts {
		if p.Timestamp.Before(filter.Since) {
			continue
		}
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) CreatePost(_ context.Context, post *model.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.LocalDay != nil {
		for _, p := range m.Posts {
			if p.UserID == post.UserID && p.LocalDay != nil && *p.LocalDay == *post.LocalDay {
				return store.ErrAlreadyPosted
			}
		}
	}
	post.ID = int64(len(m.Posts) + 1)
	m.Posts = append(m.Posts, *post)
	return nil
}

func (m *Memory) FriendIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FriendsErr != nil {
		return nil, m.FriendsErr
	}
	return append([]string(nil), m.Friends[userID]...), nil
}
