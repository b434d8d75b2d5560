package notification

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"daily-prompt-backend/internal/metrics"
	"daily-prompt-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// WorkerPool fans one payload out to many subscriptions with a fixed number
// of workers. A failed or panicking send never stops the others.
type WorkerPool struct {
	size    int
	webpush *webpush.Options
	sender  NotificationSender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, webpushOptions *webpush.Options, sender NotificationSender, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if sender == nil {
		sender = &WebPushSender{}
	}
	return &WorkerPool{
		size:    size,
		webpush: webpushOptions,
		sender:  sender,
		log:     log,
	}
}

// FanOut delivers payload to every subscription and returns the number of
// successful and failed deliveries.
func (wp *WorkerPool) FanOut(ctx context.Context, subs []model.PushSubscription, payload []byte) (sent, failed int) {
	jobs := make(chan model.PushSubscription)
	var okCount, failCount atomic.Int64
	var wg sync.WaitGroup

	workers := min(wp.size, len(subs))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for sub := range jobs {
				if err := wp.sendNotification(ctx, sub, payload); err != nil {
					wp.log.Warn("push delivery failed",
						zap.Int("worker", id),
						zap.String("endpoint", sub.Endpoint),
						zap.String("user_id", sub.UserID),
						zap.Error(err),
					)
					failCount.Add(1)
					continue
				}
				okCount.Add(1)
			}
		}(i)
	}

	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	return int(okCount.Load()), int(failCount.Load())
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncrementPushSend("failed")
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(ctx, payload, wpSub, wp.webpush)
	if err != nil {
		metrics.IncrementPushSend("failed")
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	// Expired endpoints are kept; pruning them is not this service's job.
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		metrics.IncrementPushSend("expired")
		return fmt.Errorf("subscription expired: push service returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		metrics.IncrementPushSend("failed")
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	metrics.IncrementPushSend("success")
	return nil
}
