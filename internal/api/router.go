package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"daily-prompt-backend/config"
	"daily-prompt-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg config.ServerConfig, handler *Handler) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(handler.log), gin.Recovery())

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	// only the static key is cached; every other route is per user or per instant
	cacheStore := cache.New(5*time.Minute, 10*time.Minute)
	caching := mw.Cache(cacheStore, 5*time.Minute)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/gate", handler.GetGate)
		api.GET("/feed", handler.GetFeed)
		api.POST("/posts", handler.CreatePost)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		triggers := api.Group("/triggers", mw.BearerToken(cfg.TriggerToken))
		triggers.POST("/schedule", handler.TriggerSchedule)
		triggers.POST("/dispatch", handler.TriggerDispatch)
	}

	return r
}
