// Package feed assembles today's posts for viewers the gate lets through and
// records posts made inside the window.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"daily-prompt-backend/internal/clock"
	"daily-prompt-backend/internal/gate"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/store"
)

var (
	// ErrFeedLocked is returned when the viewer has not posted today.
	ErrFeedLocked = errors.New("feed is locked until you post today")
	// ErrPostingClosed is returned when a post is attempted outside the window.
	ErrPostingClosed = errors.New("posting window is not open")
	// ErrAlreadyPosted is returned when a concurrent request already stored
	// the user's post for today.
	ErrAlreadyPosted = errors.New("you already posted today")
)

// Assemble keeps posts authored by the viewer or one of their friends. The
// viewer's own posts come first, the rest keep timestamp order.
func Assemble(viewerID string, friendIDs []string, posts []model.Post) []model.Post {
	allowed := make(map[string]struct{}, len(friendIDs)+1)
	allowed[viewerID] = struct{}{}
	for _, id := range friendIDs {
		allowed[id] = struct{}{}
	}

	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if _, ok := allowed[p.UserID]; ok {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		iOwn, jOwn := out[i].UserID == viewerID, out[j].UserID == viewerID
		if iOwn != jOwn {
			return iOwn
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Gate is the part of gate.Service the feed depends on.
type Gate interface {
	Decide(ctx context.Context, userID string) (gate.Decision, error)
	StartOfToday() time.Time
	Today() clock.Date
	Now() time.Time
}

// Service serves the gated feed.
type Service struct {
	gate  Gate
	store store.Store
	log   *zap.Logger
}

// NewService creates a feed service.
func NewService(g Gate, s store.Store, log *zap.Logger) *Service {
	return &Service{gate: g, store: s, log: log}
}

// Today returns the viewer's feed. The gate decision is always returned so
// callers can tell the viewer why the feed is locked.
func (s *Service) Today(ctx context.Context, viewerID string) (gate.Decision, []model.Post, error) {
	d, err := s.gate.Decide(ctx, viewerID)
	if err != nil {
		return d, nil, err
	}
	if !d.FeedVisible() {
		return d, nil, ErrFeedLocked
	}

	friends, err := s.store.FriendIDs(ctx, viewerID)
	if err != nil {
		return d, nil, fmt.Errorf("failed to load friends: %w", err)
	}
	posts, err := s.store.QueryPosts(ctx, store.PostFilter{Since: s.gate.StartOfToday()})
	if err != nil {
		return d, nil, fmt.Errorf("failed to load today's posts: %w", err)
	}
	return d, Assemble(viewerID, friends, posts), nil
}

// Record stores a post for userID if the posting window is open now.
func (s *Service) Record(ctx context.Context, userID, photoID, caption string) (*model.Post, gate.Decision, error) {
	d, err := s.gate.Decide(ctx, userID)
	if err != nil {
		return nil, d, err
	}
	if !d.CanPost() {
		return nil, d, ErrPostingClosed
	}

	day := s.gate.Today().String()
	post := &model.Post{
		UserID:    userID,
		PhotoID:   photoID,
		Caption:   caption,
		Timestamp: s.gate.Now(),
		LocalDay:  &day,
	}
	// the gate read and this insert are not atomic; the store's per-day
	// uniqueness decides between concurrent requests
	if err := s.store.CreatePost(ctx, post); err != nil {
		if errors.Is(err, store.ErrAlreadyPosted) {
			return nil, gate.Decision{State: gate.StateFeedVisible}, ErrAlreadyPosted
		}
		return nil, d, err
	}
	s.log.Info("post recorded", zap.String("user_id", userID), zap.Duration("remaining", d.Remaining))
	return post, d, nil
}
