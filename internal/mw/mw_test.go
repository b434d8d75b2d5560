package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestBearerToken(t *testing.T) {
	r := gin.New()
	r.POST("/t", BearerToken("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/t", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/t", http.Header{"Authorization": {"Bearer nope"}}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodPost, "/t", http.Header{"Authorization": {"s3cret"}}).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/t", http.Header{"Authorization": {"Bearer s3cret"}}).Code)
}

func TestBearerToken_EmptyTokenIsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/t", BearerToken(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/t", nil).Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/t", RateLimiter(rate.Limit(0.001), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/t", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/t", nil).Code)
	w := serve(r, http.MethodGet, "/t", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIPRateLimiter_ConcurrentFirstUseSharesBucket(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 1)

	const callers = 16
	got := make([]*rate.Limiter, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = limiter.GetLimiter("10.0.0.1")
		}(i)
	}
	wg.Wait()

	allowed := 0
	for i := range got {
		assert.Same(t, got[0], got[i])
		if got[i].Allow() {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed, "one token for one client no matter how many first requests race")
}

func TestIPRateLimiter_EvictsIdleClients(t *testing.T) {
	limiter := newIPRateLimiter(rate.Limit(1), 1, 20*time.Millisecond)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		limiter.GetLimiter(ip)
	}
	assert.Equal(t, 3, limiter.Len())

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestIPRateLimiter_ActiveClientKeepsBucket(t *testing.T) {
	limiter := newIPRateLimiter(rate.Limit(0.001), 1, 50*time.Millisecond)

	first := limiter.GetLimiter("10.0.0.1")
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		assert.Same(t, first, limiter.GetLimiter("10.0.0.1"))
	}
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/t", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"n": calls})
	})

	first := serve(r, http.MethodGet, "/t", nil)
	second := serve(r, http.MethodGet, "/t", nil)

	assert.Equal(t, 1, calls)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
}

func TestCache_SkipsErrors(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/t", Cache(cache.New(time.Minute, time.Minute), time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusServiceUnavailable)
	})

	serve(r, http.MethodGet, "/t", nil)
	serve(r, http.MethodGet, "/t", nil)

	assert.Equal(t, 2, calls)
}

func TestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/t", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	assert.Equal(t, http.StatusTeapot, serve(r, http.MethodGet, "/t", nil).Code)
}
