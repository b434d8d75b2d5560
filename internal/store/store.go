package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyPosted is returned when the user already has a post for the
	// post's local day.
	ErrAlreadyPosted = errors.New("already posted today")
)

// PostFilter selects posts by author and capture time.
type PostFilter struct {
	UserID string    // empty matches every author
	Since  time.Time // inclusive lower bound on Timestamp
}

// Store defines the interface for all database operations.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	FindNotifications(ctx context.Context, date clock.Date, notificationType string) ([]model.Notification, error)
	ClaimDispatch(ctx context.Context, notificationID string, at time.Time) (bool, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint, userID string) error

	QueryPosts(ctx context.Context, filter PostFilter) ([]model.Post, error)
	CreatePost(ctx context.Context, post *model.Post) error
	FriendIDs(ctx context.Context, userID string) ([]string, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// CreateNotification inserts n, generating a time-ordered id when none is set.
func (s *gormStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.ScheduledAt = n.ScheduledAt.UTC()
	if n.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate notification id: %w", err)
		}
		n.ID = id.String()
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification %s: %w", n.ID, err)
	}
	return nil
}

// FindNotifications returns every record for the date, oldest first.
func (s *gormStore) FindNotifications(ctx context.Context, date clock.Date, notificationType string) ([]model.Notification, error) {
	var records []model.Notification
	err := s.db.WithContext(ctx).
		Where("year = ? AND month = ? AND day = ? AND type = ?", date.Year, date.Month, date.Day, notificationType).
		Order("created_at ASC").Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications for %s: %w", date, err)
	}
	return records, nil
}

// ClaimDispatch sets DispatchedAt only if no other invocation has set it.
// It reports whether this call won the claim.
func (s *gormStore) ClaimDispatch(ctx context.Context, notificationID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND dispatched_at IS NULL", notificationID).
		Update("dispatched_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim notification %s: %w", notificationID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// UpsertSubscription creates the subscription or refreshes keys and owner of an existing endpoint.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth", "updated_at"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// DeleteSubscription removes endpoint only when it belongs to userID.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint, userID string) error {
	err := s.db.WithContext(ctx).
		Where("endpoint = ? AND user_id = ?", endpoint, userID).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *gormStore) QueryPosts(ctx context.Context, filter PostFilter) ([]model.Post, error) {
	q := s.db.WithContext(ctx).Where("timestamp >= ?", filter.Since.UTC())
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	var posts []model.Post
	if err := q.Order("timestamp ASC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	return posts, nil
}

// CreatePost inserts a post. The (user_id, local_day) unique index turns a
// second post for the same day into a no-op, reported as ErrAlreadyPosted.
func (s *gormStore) CreatePost(ctx context.Context, post *model.Post) error {
	post.Timestamp = post.Timestamp.UTC()
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(post)
	if res.Error != nil {
		return fmt.Errorf("failed to create post for user %s: %w", post.UserID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyPosted
	}
	return nil
}

func (s *gormStore) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&model.Friendship{}).
		Where("user_id = ?", userID).
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list friends of %s: %w", userID, err)
	}
	return ids, nil
}

// Canonical picks the authoritative record among same-day duplicates: the
// earliest created, ties broken by id. It returns nil for an empty slice.
func Canonical(records []model.Notification) *model.Notification {
	if len(records) == 0 {
		return nil
	}
	sorted := make([]model.Notification, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &sorted[0]
}

// CanonicalNotification looks up the daily record for date. It returns
// ErrNotFound when none has been scheduled.
func CanonicalNotification(ctx context.Context, s Store, date clock.Date) (*model.Notification, error) {
	records, err := s.FindNotifications(ctx, date, model.NotificationTypeDaily)
	if err != nil {
		return nil, err
	}
	n := Canonical(records)
	if n == nil {
		return nil, ErrNotFound
	}
	return n, nil
}
