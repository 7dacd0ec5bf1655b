package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{Limit: limit, Window: window, CleanupInterval: time.Hour})
	rl.now = clock.Now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestFixedWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, time.Hour)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("user-1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"), "keys are independent")

	// Requests inside the window do not extend it.
	clock.Advance(59 * time.Minute)
	assert.False(t, rl.Allow("user-1"))
	assert.Equal(t, time.Minute, rl.RetryAfter("user-1"))

	clock.Advance(time.Minute)
	assert.True(t, rl.Allow("user-1"))
	assert.Equal(t, int64(2), rl.GetMetrics().Denied)
}

func TestCleanupDropsExpiredKeys(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Minute)
	rl.Allow("a")
	rl.Allow("b")
	require.Equal(t, 2, rl.ActiveKeys())

	clock.Advance(2 * time.Minute)
	rl.sweep()
	assert.Equal(t, 0, rl.ActiveKeys())
}

func TestMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	h := rl.Middleware(func(r *http.Request) string { return "1.2.3.4" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "61", rec.Header().Get("Retry-After"))
}
