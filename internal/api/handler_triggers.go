package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	scheduleOK     = "Scheduled notification successfully."
	scheduleFailed = "Error occurred"
)

// TriggerSchedule creates tomorrow's prompt. Every call creates a record;
// readers resolve duplicates to the earliest one.
func (h *Handler) TriggerSchedule(c *gin.Context) {
	n, err := h.scheduler.ScheduleNext(c.Request.Context())
	if err != nil {
		h.log.Error("schedule trigger failed", zap.Error(err))
		c.String(http.StatusInternalServerError, scheduleFailed)
		return
	}
	h.log.Info("schedule trigger succeeded",
		zap.String("notification_id", n.ID),
		zap.Time("scheduled_at", n.ScheduledAt))
	c.String(http.StatusOK, scheduleOK)
}

// TriggerDispatch runs one dispatcher invocation and reports its status text.
func (h *Handler) TriggerDispatch(c *gin.Context) {
	res, err := h.dispatcher.Dispatch(c.Request.Context())
	if err != nil {
		h.log.Error("dispatch trigger failed", zap.Error(err))
	}
	c.String(res.Code, res.Status)
}
