package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"daily-prompt-backend/internal/feed"
	"daily-prompt-backend/internal/gate"
	"daily-prompt-backend/internal/model"
)

type gateResponse struct {
	State            gate.State `json:"state"`
	CanPost          bool       `json:"can_post"`
	FeedVisible      bool       `json:"feed_visible"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	OpenedAt         *time.Time `json:"opened_at,omitempty"`
}

func newGateResponse(d gate.Decision) gateResponse {
	resp := gateResponse{
		State:       d.State,
		CanPost:     d.CanPost(),
		FeedVisible: d.FeedVisible(),
		OpenedAt:    d.OpenedAt,
	}
	if d.CanPost() {
		secs := int(math.Ceil(d.Remaining.Seconds()))
		resp.RemainingSeconds = &secs
	}
	return resp
}

type postResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PhotoID   string    `json:"photo_id"`
	Caption   string    `json:"caption,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func newPostResponse(p model.Post) postResponse {
	return postResponse{ID: p.ID, UserID: p.UserID, PhotoID: p.PhotoID, Caption: p.Caption, Timestamp: p.Timestamp}
}

// GetGate returns the caller's gate decision. A store failure is reported
// as UNKNOWN with 503 so clients never unlock on an error.
func (h *Handler) GetGate(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	d, err := h.gate.Decide(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, newGateResponse(d))
		return
	}
	c.JSON(http.StatusOK, newGateResponse(d))
}

// GetFeed returns today's feed when the caller has posted.
func (h *Handler) GetFeed(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	d, posts, err := h.feed.Today(c.Request.Context(), userID)
	switch {
	case errors.Is(err, feed.ErrFeedLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "gate": newGateResponse(d)})
		return
	case err != nil:
		h.log.Error("failed to load feed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed is unavailable", "gate": newGateResponse(d)})
		return
	}

	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = newPostResponse(p)
	}
	c.JSON(http.StatusOK, gin.H{"posts": out})
}

type createPostRequest struct {
	PhotoID string `json:"photo_id" binding:"required"`
	Caption string `json:"caption"`
}

// CreatePost records the caller's daily post while the window is open.
func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	post, d, err := h.feed.Record(c.Request.Context(), userID, req.PhotoID, req.Caption)
	switch {
	case errors.Is(err, feed.ErrPostingClosed), errors.Is(err, feed.ErrAlreadyPosted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "gate": newGateResponse(d)})
		return
	case err != nil:
		h.log.Error("failed to record post", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "posting is unavailable", "gate": newGateResponse(d)})
		return
	}
	c.JSON(http.StatusCreated, newPostResponse(*post))
}
