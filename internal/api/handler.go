package api

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"daily-prompt-backend/internal/gate"
	"daily-prompt-backend/internal/model"
	"daily-prompt-backend/internal/notification"
	"daily-prompt-backend/internal/store"
)

// UserIDHeader carries the authenticated user id set by the upstream proxy.
const UserIDHeader = "X-User-ID"

// PromptScheduler creates the next day's prompt.
type PromptScheduler interface {
	ScheduleNext(ctx context.Context) (*model.Notification, error)
}

// Dispatcher sends today's prompt.
type Dispatcher interface {
	Dispatch(ctx context.Context) (notification.Result, error)
}

// Gate decides what a user may do right now.
type Gate interface {
	Decide(ctx context.Context, userID string) (gate.Decision, error)
}

// Feed serves and records posts behind the gate.
type Feed interface {
	Today(ctx context.Context, viewerID string) (gate.Decision, []model.Post, error)
	Record(ctx context.Context, userID, photoID, caption string) (*model.Post, gate.Decision, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	scheduler  PromptScheduler
	dispatcher Dispatcher
	gate       Gate
	feed       Feed
	log        *zap.Logger
}

// Deps groups the services the handlers call into.
type Deps struct {
	Store      store.Store
	Webpush    *webpush.Options
	Scheduler  PromptScheduler
	Dispatcher Dispatcher
	Gate       Gate
	Feed       Feed
	Log        *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:      d.Store,
		webpush:    d.Webpush,
		scheduler:  d.Scheduler,
		dispatcher: d.Dispatcher,
		gate:       d.Gate,
		feed:       d.Feed,
		log:        log,
	}
}

// requireUser reads the caller's id, aborting with 401 when it is absent.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader + " header"})
		return "", false
	}
	return userID, true
}
